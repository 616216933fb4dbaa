package dto

import (
	"github.com/dataask/dataask/core/application/scheduler"
	"github.com/dataask/dataask/core/domain"
)

// ScheduledQueryRequest is the body of both create and update. On update
// omitted fields keep their stored value.
type ScheduledQueryRequest struct {
	Name            *string                 `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string                 `json:"description"`
	ConnectionID    *string                 `json:"connection_id" validate:"omitempty,min=1"`
	QueryType       *domain.QueryType       `json:"query_type" validate:"omitempty,oneof=visual sql"`
	QueryDefinition *domain.QueryDefinition `json:"query_definition"`
	SQL             *string                 `json:"sql"`
	Parameters      domain.ParameterValues  `json:"parameters"`
	ScheduleType    *domain.ScheduleType    `json:"schedule_type" validate:"omitempty,oneof=cron interval"`
	CronExpression  *string                 `json:"cron_expression"`
	IntervalMinutes *int                    `json:"interval_minutes" validate:"omitempty,min=1"`
	Recipients      []string                `json:"recipients" validate:"omitempty,dive,email"`
	Subject         *string                 `json:"subject"`
	Format          []domain.ReportFormat   `json:"format" validate:"omitempty,dive,oneof=csv pdf xlsx"`
	Enabled         *bool                   `json:"enabled"`
}

// ToPatch converts the body into a partial update.
func (r ScheduledQueryRequest) ToPatch() scheduler.Patch {
	return scheduler.Patch{
		Name:            r.Name,
		Description:     r.Description,
		ConnectionID:    r.ConnectionID,
		QueryType:       r.QueryType,
		QueryDefinition: r.QueryDefinition,
		SQL:             r.SQL,
		Parameters:      r.Parameters,
		ScheduleType:    r.ScheduleType,
		CronExpression:  r.CronExpression,
		IntervalMinutes: r.IntervalMinutes,
		Recipients:      r.Recipients,
		Subject:         r.Subject,
		Format:          r.Format,
		Enabled:         r.Enabled,
	}
}

// ToDomain builds a new scheduled query. A missing enabled flag means
// enabled.
func (r ScheduledQueryRequest) ToDomain(workspaceID, userID string) *domain.ScheduledQuery {
	q := &domain.ScheduledQuery{
		WorkspaceID: workspaceID,
		Enabled:     true,
		CreatedBy:   userID,
	}
	r.ToPatch().Apply(q)
	return q
}
