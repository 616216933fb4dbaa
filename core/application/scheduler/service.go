package scheduler

import (
	"context"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/logger"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// Registry is the part of Manager driven by scheduled query changes.
type Registry interface {
	Register(ctx context.Context, q *domain.ScheduledQuery) error
	Deregister(id string)
	Trigger(ctx context.Context, id string, run func(ctx context.Context, id string) *Outcome) (*Outcome, bool)
}

// ManualRunner runs a query outside of its schedule.
type ManualRunner interface {
	RunNow(ctx context.Context, id string) *Outcome
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Name            *string
	Description     *string
	ConnectionID    *string
	QueryType       *domain.QueryType
	QueryDefinition *domain.QueryDefinition
	SQL             *string
	Parameters      domain.ParameterValues
	ScheduleType    *domain.ScheduleType
	CronExpression  *string
	IntervalMinutes *int
	Recipients      []string
	Subject         *string
	Format          []domain.ReportFormat
	Enabled         *bool
}

// Apply copies the set fields onto q. Switching query or schedule type
// clears the payload of the other type.
func (p Patch) Apply(q *domain.ScheduledQuery) {
	if p.Name != nil {
		q.Name = *p.Name
	}
	if p.Description != nil {
		q.Description = *p.Description
	}
	if p.ConnectionID != nil {
		q.ConnectionID = *p.ConnectionID
	}
	if p.QueryType != nil {
		q.QueryType = *p.QueryType
	}
	if p.QueryDefinition != nil {
		q.QueryDefinition = p.QueryDefinition
	}
	if p.SQL != nil {
		q.SQL = *p.SQL
	}
	if p.Parameters != nil {
		q.Parameters = p.Parameters
	}
	if p.ScheduleType != nil {
		q.ScheduleType = *p.ScheduleType
	}
	if p.CronExpression != nil {
		q.CronExpression = *p.CronExpression
	}
	if p.IntervalMinutes != nil {
		q.IntervalMinutes = *p.IntervalMinutes
	}
	if p.Recipients != nil {
		q.Recipients = p.Recipients
	}
	if p.Subject != nil {
		q.Subject = *p.Subject
	}
	if p.Format != nil {
		q.Format = p.Format
	}
	if p.Enabled != nil {
		q.Enabled = *p.Enabled
	}

	switch q.QueryType {
	case domain.QueryTypeSQL:
		q.QueryDefinition = nil
	case domain.QueryTypeVisual:
		q.SQL = ""
	}
	switch q.ScheduleType {
	case domain.ScheduleCron:
		q.IntervalMinutes = 0
	case domain.ScheduleInterval:
		q.CronExpression = ""
	}
}

// Service manages scheduled queries of a workspace and keeps the registry
// in step with every change.
type Service struct {
	repo        interfaces.ScheduledQueryRepository
	connections interfaces.ConnectionRepository
	registry    Registry
	runner      ManualRunner
	log         logger.Logger
}

func NewService(
	repo interfaces.ScheduledQueryRepository,
	connections interfaces.ConnectionRepository,
	registry Registry,
	runner ManualRunner,
) *Service {
	return &Service{
		repo:        repo,
		connections: connections,
		registry:    registry,
		runner:      runner,
		log:         logger.New("scheduler:service"),
	}
}

func (s *Service) List(ctx context.Context, workspaceID string) ([]*domain.ScheduledQuery, error) {
	return s.repo.List(ctx, workspaceID)
}

// Get returns id when it belongs to workspaceID.
func (s *Service) Get(ctx context.Context, workspaceID, id string) (*domain.ScheduledQuery, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil || q.WorkspaceID != workspaceID {
		return nil, apperrors.NotFound("scheduled query", id)
	}
	return q, nil
}

// Create validates and stores q, then registers its trigger.
func (s *Service) Create(ctx context.Context, q *domain.ScheduledQuery) (*domain.ScheduledQuery, error) {
	if err := s.check(ctx, q); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}
	s.log.Infof("Created scheduled query %s (%s)", q.ID, q.Name)
	return s.register(ctx, q)
}

func (s *Service) Update(ctx context.Context, workspaceID, id string, patch Patch) (*domain.ScheduledQuery, error) {
	q, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(q)
	if err := s.check(ctx, q); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}
	return s.register(ctx, q)
}

// Toggle flips Enabled.
func (s *Service) Toggle(ctx context.Context, workspaceID, id string) (*domain.ScheduledQuery, error) {
	q, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	q.Enabled = !q.Enabled
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}
	s.log.Infof("Scheduled query %s enabled=%t", id, q.Enabled)
	return s.register(ctx, q)
}

// Delete removes id and its trigger. A run in flight is not interrupted.
func (s *Service) Delete(ctx context.Context, workspaceID, id string) error {
	if _, err := s.Get(ctx, workspaceID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.registry.Deregister(id)
	return nil
}

// RunNow runs id immediately, enabled or not, and waits for the outcome.
// A run already in progress is a CONFLICT.
func (s *Service) RunNow(ctx context.Context, workspaceID, id string) (*Outcome, error) {
	if _, err := s.Get(ctx, workspaceID, id); err != nil {
		return nil, err
	}
	out, ok := s.registry.Trigger(context.WithoutCancel(ctx), id, s.runner.RunNow)
	if !ok {
		return nil, apperrors.NewAppError(apperrors.ErrCodeConflict, "scheduled query '"+id+"' is already running", nil)
	}
	if out == nil {
		return nil, apperrors.NotFound("scheduled query", id)
	}
	return out, nil
}

func (s *Service) check(ctx context.Context, q *domain.ScheduledQuery) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if _, err := ParseSchedule(q); err != nil {
		return err
	}
	conn, err := s.connections.Get(ctx, q.ConnectionID)
	if err != nil {
		return err
	}
	if conn == nil || conn.WorkspaceID != q.WorkspaceID {
		return apperrors.NotFound("connection", q.ConnectionID)
	}
	return nil
}

// register syncs the trigger and returns the stored row, which carries the
// recomputed next_run_at.
func (s *Service) register(ctx context.Context, q *domain.ScheduledQuery) (*domain.ScheduledQuery, error) {
	if err := s.registry.Register(ctx, q); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, q.ID)
}
