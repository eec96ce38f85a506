package audit

import (
	"context"
	"log/slog"

	"github.com/cohaus/cohaus/internal/shared"
)

// RepositoryPort defines persistence operations for the audit log.
type RepositoryPort interface {
	Insert(ctx context.Context, event Event) error
	List(ctx context.Context, limit, offset int) ([]Event, int, error)
	Count(ctx context.Context) (int, error)
}

// Service coordinates audit recording and retrieval.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record appends an event. Auditing is best effort on the write path: a
// failed insert is logged, not propagated, so it cannot roll back the
// operation being audited.
func (s *Service) Record(ctx context.Context, event Event) {
	if err := s.repo.Insert(ctx, event); err != nil && s.logger != nil {
		s.logger.Error("audit record",
			slog.String("action", event.Action),
			slog.String("entity_id", event.EntityID),
			slog.Any("error", err))
	}
}

// Result bundles a page of events with paging metadata.
type Result struct {
	Events     []Event           `json:"events"`
	Pagination shared.Pagination `json:"pagination"`
}

// Timeline returns a page of events, newest first.
func (s *Service) Timeline(ctx context.Context, page, perPage int) (Result, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	events, total, err := s.repo.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return Result{}, err
	}
	return Result{Events: events, Pagination: shared.NewPagination(page, perPage, total)}, nil
}

// Count returns the total number of events.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
