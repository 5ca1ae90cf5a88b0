package domain

import "time"

// Mode names a delivery strategy.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeEvent  Mode = "event"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeDirect || m == ModeEvent
}

// RunStatus is the overall outcome of a sync run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// DeliveryFailure records one product that was not delivered.
type DeliveryFailure struct {
	ID     string `json:"id"`
	Batch  int    `json:"batch"`
	Reason string `json:"error"`
}

// SyncReport summarizes a sync run. It is returned to the caller and never
// stored.
type SyncReport struct {
	RunID        string            `json:"run_id"`
	Mode         Mode              `json:"mode"`
	Index        string            `json:"index,omitempty"`
	Total        int               `json:"total"`
	CatalogTotal int               `json:"catalog_total"`
	Succeeded    []string          `json:"succeeded"`
	Failed       []DeliveryFailure `json:"failed"`
	Batches      int               `json:"batches"`
	TaskUIDs     []int64           `json:"task_uids,omitempty"`
	Status       RunStatus         `json:"status"`
	Message      string            `json:"message"`
	Note         string            `json:"note,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
}

// FailedIDs returns the ids of failed products in report order.
func (r *SyncReport) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}

// LastTaskUID returns the most recent acknowledged task id, or nil when the
// backend returned none.
func (r *SyncReport) LastTaskUID() *int64 {
	if len(r.TaskUIDs) == 0 {
		return nil
	}
	uid := r.TaskUIDs[len(r.TaskUIDs)-1]
	return &uid
}
