package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
)

// ResponseError is a non-2xx answer from a downstream HTTP service.
type ResponseError struct {
	Service string
	Status  int
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s returned status %d (%s): %s", e.Service, e.Status, e.Code, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Message)
}

// Unwrap maps the status onto the matching sentinel so callers can use
// errors.Is without inspecting status codes.
func (e *ResponseError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.Status == http.StatusConflict:
		return apperrors.ErrConflict
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		return apperrors.ErrInvalidInput
	case e.Status == http.StatusServiceUnavailable, e.Status == http.StatusBadGateway, e.Status == http.StatusGatewayTimeout:
		return apperrors.ErrServiceUnavail
	case e.Status >= 500:
		return apperrors.ErrInternal
	}
	return nil
}

// errorBody covers the error shapes returned by the services this module
// talks to: Meilisearch ({message, code}), the catalog service
// ({error: {code, message}}) and Elasticsearch ({error: {type, reason}}).
type errorBody struct {
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   json.RawMessage `json:"error"`
}

type nestedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Reason  string `json:"reason"`
}

// ParseResponseError reads the body of a non-2xx response into a
// *ResponseError. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	rerr := &ResponseError{Service: serviceName, Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		rerr.Message = fmt.Sprintf("read body: %v", err)
		return rerr
	}

	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		rerr.Code, rerr.Message = body.Code, body.Message
		if len(body.Error) > 0 && string(body.Error) != "null" {
			var nested nestedError
			if json.Unmarshal(body.Error, &nested) == nil {
				rerr.Code = firstNonEmpty(nested.Code, nested.Type, rerr.Code)
				rerr.Message = firstNonEmpty(nested.Message, nested.Reason, rerr.Message)
			} else {
				var s string
				if json.Unmarshal(body.Error, &s) == nil {
					rerr.Message = firstNonEmpty(rerr.Message, s)
				}
			}
		}
		if rerr.Message != "" || rerr.Code != "" {
			return rerr
		}
	}

	rerr.Message = strings.TrimSpace(string(raw))
	return rerr
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
