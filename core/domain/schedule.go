package domain

import (
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// ScheduleType selects the trigger kind of a ScheduledQuery.
type ScheduleType string

const (
	ScheduleCron     ScheduleType = "cron"
	ScheduleInterval ScheduleType = "interval"
)

// ReportFormat is an attachment format for scheduled results.
type ReportFormat string

const (
	FormatCSV  ReportFormat = "csv"
	FormatPDF  ReportFormat = "pdf"
	FormatXLSX ReportFormat = "xlsx"
)

// RunStatus is the outcome of an execution attempt.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// ScheduledQuery binds a query payload to a trigger and an email delivery.
// Schedule and query fields belong to the caller; the Last*/NextRunAt fields
// are written only by the scheduler.
type ScheduledQuery struct {
	ID           string `json:"id"`
	WorkspaceID  string `json:"workspace_id"`
	ConnectionID string `json:"connection_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`

	QueryType       QueryType        `json:"query_type"`
	QueryDefinition *QueryDefinition `json:"query_definition,omitempty"`
	SQL             string           `json:"sql,omitempty"`
	Parameters      ParameterValues  `json:"parameters,omitempty"`

	ScheduleType    ScheduleType `json:"schedule_type"`
	CronExpression  string       `json:"cron_expression,omitempty"`
	IntervalMinutes int          `json:"interval_minutes,omitempty"`

	Recipients []string       `json:"recipients"`
	Subject    string         `json:"subject,omitempty"`
	Format     []ReportFormat `json:"format"`
	Enabled    bool           `json:"enabled"`

	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus RunStatus  `json:"last_run_status,omitempty"`
	LastRunError  string     `json:"last_run_error,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunState is the subset of ScheduledQuery written after a fire.
type RunState struct {
	LastRunAt     time.Time
	LastRunStatus RunStatus
	LastRunError  string
}

// ValidatePayload checks that exactly one of definition or SQL is set and
// that it matches QueryType.
func (q *ScheduledQuery) ValidatePayload() error {
	hasDef := q.QueryDefinition != nil
	hasSQL := strings.TrimSpace(q.SQL) != ""
	switch {
	case hasDef && hasSQL:
		return apperrors.Validation("provide either query_definition or sql, not both")
	case !hasDef && !hasSQL:
		return apperrors.Validation("either query_definition or sql is required")
	}
	switch q.QueryType {
	case QueryTypeVisual:
		if !hasDef {
			return apperrors.Validation("query_type 'visual' requires query_definition")
		}
	case QueryTypeSQL:
		if !hasSQL {
			return apperrors.Validation("query_type 'sql' requires sql")
		}
	default:
		return apperrors.Validation("unknown query_type '%s'", q.QueryType)
	}
	return nil
}

// ValidateSchedule checks the trigger fields. The cron expression itself is
// parsed by the scheduler.
func (q *ScheduledQuery) ValidateSchedule() error {
	switch q.ScheduleType {
	case ScheduleCron:
		if strings.TrimSpace(q.CronExpression) == "" {
			return apperrors.Validation("cron_expression is required for cron schedules")
		}
		if q.IntervalMinutes != 0 {
			return apperrors.Validation("interval_minutes must be empty for cron schedules")
		}
	case ScheduleInterval:
		if q.IntervalMinutes < 1 {
			return apperrors.Validation("interval_minutes must be at least 1")
		}
		if q.CronExpression != "" {
			return apperrors.Validation("cron_expression must be empty for interval schedules")
		}
	default:
		return apperrors.Validation("unknown schedule_type '%s'", q.ScheduleType)
	}
	return nil
}

// ValidateDelivery checks recipients and formats.
func (q *ScheduledQuery) ValidateDelivery() error {
	if len(q.Recipients) == 0 {
		return apperrors.Validation("at least one recipient is required")
	}
	for _, r := range q.Recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			return apperrors.Validation("invalid recipient '%s'", r)
		}
	}
	if len(q.Format) == 0 {
		return apperrors.Validation("at least one format is required")
	}
	for _, f := range q.Format {
		switch f {
		case FormatCSV, FormatPDF, FormatXLSX:
		default:
			return apperrors.Validation("unsupported format '%s'", f)
		}
	}
	return nil
}

// Validate runs every structural check on the scheduled query.
func (q *ScheduledQuery) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return apperrors.Validation("name is required")
	}
	if q.ConnectionID == "" {
		return apperrors.Validation("connection_id is required")
	}
	if err := q.ValidatePayload(); err != nil {
		return err
	}
	if err := q.ValidateSchedule(); err != nil {
		return err
	}
	return q.ValidateDelivery()
}

// HasFormat reports whether f is among the requested formats.
func (q *ScheduledQuery) HasFormat(f ReportFormat) bool {
	for _, have := range q.Format {
		if have == f {
			return true
		}
	}
	return false
}
