// Package report turns dispatch results into a SyncReport.
package report

import (
	"fmt"
	"time"

	"github.com/utafrali/catalog-sync/internal/dispatch"
	"github.com/utafrali/catalog-sync/internal/domain"
)

// Messages shown to callers.
const (
	MessageCompleted = "Products reindexed successfully"
	NoteAsync        = "Reindex notifications emitted; indexing completes asynchronously"
)

// Input is everything Build needs. Total is the size of the snapshot that
// was dispatched; CatalogTotal is the count the source reported.
type Input struct {
	RunID        string
	Mode         domain.Mode
	Index        string
	Total        int
	CatalogTotal int
	Result       dispatch.Result
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Build aggregates a run. It has no side effects.
func Build(in Input) domain.SyncReport {
	res := in.Result
	succeeded := res.Succeeded
	if succeeded == nil {
		succeeded = []string{}
	}
	failed := res.Failed
	if failed == nil {
		failed = []domain.DeliveryFailure{}
	}

	r := domain.SyncReport{
		RunID:        in.RunID,
		Mode:         in.Mode,
		Index:        in.Index,
		Total:        in.Total,
		CatalogTotal: in.CatalogTotal,
		Succeeded:    succeeded,
		Failed:       failed,
		Batches:      res.Batches,
		TaskUIDs:     res.TaskUIDs,
		StartedAt:    in.StartedAt,
	}
	if !in.FinishedAt.IsZero() {
		r.Duration = in.FinishedAt.Sub(in.StartedAt)
	}
	r.Status = status(len(succeeded), len(failed), res.Canceled)
	r.Message = message(r.Status, len(succeeded), in.Total)
	if in.Mode == domain.ModeEvent {
		r.Note = NoteAsync
	}
	return r
}

func status(succeeded, failed int, canceled bool) domain.RunStatus {
	switch {
	case canceled:
		return domain.RunCanceled
	case failed > 0 && succeeded == 0:
		return domain.RunFailed
	case failed > 0:
		return domain.RunPartial
	default:
		return domain.RunCompleted
	}
}

func message(s domain.RunStatus, succeeded, total int) string {
	switch s {
	case domain.RunCanceled:
		return fmt.Sprintf("Reindex canceled after %d of %d products", succeeded, total)
	case domain.RunFailed:
		return fmt.Sprintf("Reindex failed for all %d products", total)
	case domain.RunPartial:
		return fmt.Sprintf("Reindexed %d of %d products", succeeded, total)
	default:
		return MessageCompleted
	}
}
