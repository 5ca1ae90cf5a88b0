package pagination

import (
	"net/url"
	"strconv"
)

// MaxPerPage is the largest page the product service serves.
const MaxPerPage = 100

// Params identifies one page of a listing.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// NewParams clamps page and perPage to valid values.
func NewParams(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage}
}

// Next returns the following page.
func (p Params) Next() Params {
	return Params{Page: p.Page + 1, PerPage: p.PerPage}
}

// Encode sets page and per_page on q.
func (p Params) Encode(q url.Values) {
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(p.PerPage))
}

// Result is one page of a paginated listing as served over HTTP.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

