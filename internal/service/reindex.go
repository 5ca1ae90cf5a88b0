package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog-sync/internal/catalog"
	"github.com/utafrali/catalog-sync/internal/delivery"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/lock"
	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
)

// Remediation hints for collaborators that were never configured.
const (
	hintSearchEngine = "set SEARCH_ENGINE (meilisearch, elasticsearch or memory) and MEILISEARCH_HOST/MEILISEARCH_ADMIN_KEY or ELASTICSEARCH_URL"
	hintEventBus     = "set EVENT_BUS (kafka or memory) and KAFKA_BROKERS"
)

// AdminStatuses are the statuses covered by an operator-triggered reindex.
var AdminStatuses = []string{domain.StatusPublished, domain.StatusDraft}

// ReindexService picks a delivery strategy per run, guards against
// overlapping runs and runs the pipeline. Strategies left nil are reported
// as missing configuration when a run asks for them.
type ReindexService struct {
	reader      catalog.Reader
	direct      delivery.Strategy
	event       delivery.Strategy
	defaultMode domain.Mode
	guard       lock.Guard
	opts        Options
	logger      *slog.Logger
}

// NewReindexService creates the service. direct and event may be nil.
func NewReindexService(
	reader catalog.Reader,
	direct, event delivery.Strategy,
	defaultMode domain.Mode,
	guard lock.Guard,
	opts Options,
	logger *slog.Logger,
) *ReindexService {
	if guard == nil {
		guard = lock.NewLocal()
	}
	if !defaultMode.Valid() {
		defaultMode = domain.ModeDirect
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReindexService{
		reader:      reader,
		direct:      direct,
		event:       event,
		defaultMode: defaultMode,
		guard:       guard,
		opts:        opts,
		logger:      logger,
	}
}

// DefaultMode is the mode used when a caller does not choose one.
func (s *ReindexService) DefaultMode() domain.Mode { return s.defaultMode }

// Reindex runs one sync in mode. An empty mode means DefaultMode. Errors are
// *apperrors.AppError: ConfigurationMissing, Conflict or SourceUnavailable.
func (s *ReindexService) Reindex(ctx context.Context, mode domain.Mode, req Request) (domain.SyncReport, error) {
	if mode == "" {
		mode = s.defaultMode
	}

	strategy, err := s.strategy(mode)
	if err != nil {
		return domain.SyncReport{}, err
	}

	key := "reindex:" + string(mode)
	release, err := s.guard.Acquire(ctx, key)
	if errors.Is(err, lock.ErrHeld) {
		return domain.SyncReport{}, apperrors.Conflict(fmt.Sprintf("a %s reindex is already in progress", mode))
	}
	if err != nil {
		return domain.SyncReport{}, apperrors.Internal(err)
	}
	defer release()

	return NewPipeline(s.reader, strategy, s.opts, s.logger).Run(ctx, req)
}

func (s *ReindexService) strategy(mode domain.Mode) (delivery.Strategy, error) {
	switch mode {
	case domain.ModeDirect:
		if s.direct == nil {
			return nil, apperrors.ConfigurationMissing("search engine", hintSearchEngine)
		}
		return s.direct, nil
	case domain.ModeEvent:
		if s.event == nil {
			return nil, apperrors.ConfigurationMissing("event bus", hintEventBus)
		}
		return s.event, nil
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown delivery mode %q", mode))
	}
}
