// Package service implements the persistence use cases behind every surface:
// generate, history, get, update and health.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/omjikush09/aggroso/internal/logging"
	"github.com/omjikush09/aggroso/internal/specs"
	"github.com/omjikush09/aggroso/internal/store"
	"github.com/omjikush09/aggroso/internal/validate"
)

// Service coordinates the template generator and the store.
type Service struct {
	store        store.Store
	logger       *slog.Logger
	newID        specs.IDFunc
	now          func() time.Time
	startedAt    time.Time
	historyLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDFunc overrides story/task id generation.
func WithIDFunc(fn specs.IDFunc) Option {
	return func(s *Service) { s.newID = fn }
}

// WithClock overrides the time source used for createdAt, health timestamps
// and uptime.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHistoryLimit sets how many specs History returns.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// New creates a Service over st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:        st,
		logger:       logging.Discard(),
		newID:        specs.NewID,
		now:          time.Now,
		historyLimit: store.DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	return s
}

// Generate runs the template generator and stores the result atomically.
// The input is expected to be validated already.
func (s *Service) Generate(ctx context.Context, in specs.GenerateInput) (*specs.Specification, error) {
	// Postgres keeps microseconds; truncate so the response matches later reads.
	created := s.now().UTC().Truncate(time.Microsecond)
	spec := specs.Specification{
		ID:        specs.NewSpecID(created),
		CreatedAt: created,
		Input:     specs.InputFor(in),
		Output:    specs.Generate(in, s.newID),
	}

	if err := s.store.CreateSpec(ctx, spec); err != nil {
		s.logger.ErrorContext(ctx, "create spec failed", "error", err)
		return nil, fmt.Errorf("generate: %w", err)
	}

	s.logger.InfoContext(ctx, "spec created",
		"id", spec.ID,
		"template", spec.Input.Template,
		"tasks", len(spec.Output.Tasks),
	)
	return &spec, nil
}

// History returns the most recent specs, newest first.
func (s *Service) History(ctx context.Context) ([]specs.Specification, error) {
	list, err := s.store.ListSpecs(ctx, s.historyLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "list specs failed", "error", err)
		return nil, fmt.Errorf("history: %w", err)
	}
	return list, nil
}

// Get returns one spec. Unknown ids wrap specs.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*specs.Specification, error) {
	spec, err := s.store.GetSpec(ctx, id)
	if err != nil {
		if !errors.Is(err, specs.ErrNotFound) {
			s.logger.ErrorContext(ctx, "get spec failed", "id", id, "error", err)
		}
		return nil, fmt.Errorf("get: %w", err)
	}
	return spec, nil
}

// Update replaces the collections present in p and returns the spec as
// committed. Omitted collections are untouched; an empty slice clears.
func (s *Service) Update(ctx context.Context, id string, p specs.UpdatePayload) (*specs.Specification, error) {
	if p.IsEmpty() {
		return nil, validate.EmptyUpdate()
	}

	spec, err := s.store.Replace(ctx, id, store.OpsFor(p)...)
	if err != nil {
		if !errors.Is(err, specs.ErrNotFound) {
			s.logger.ErrorContext(ctx, "update spec failed", "id", id, "error", err)
		}
		return nil, fmt.Errorf("update: %w", err)
	}

	s.logger.InfoContext(ctx, "spec updated",
		"id", id,
		"tasks", p.Tasks != nil,
		"stories", p.Stories != nil,
	)
	return spec, nil
}

// ReplaceTasks satisfies organizer.TaskWriter for in-process sessions.
func (s *Service) ReplaceTasks(ctx context.Context, specID string, tasks []specs.Task) error {
	_, err := s.Update(ctx, specID, specs.UpdatePayload{Tasks: specs.CloneTasks(nonNil(tasks))})
	return err
}

func nonNil(tasks []specs.Task) []specs.Task {
	if tasks == nil {
		return []specs.Task{}
	}
	return tasks
}
