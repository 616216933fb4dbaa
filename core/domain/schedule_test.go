package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dataask/dataask/core/domain"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

func validScheduledQuery() *domain.ScheduledQuery {
	return &domain.ScheduledQuery{
		Name:            "Daily revenue",
		ConnectionID:    "conn-1",
		QueryType:       domain.QueryTypeSQL,
		SQL:             "SELECT 1",
		ScheduleType:    domain.ScheduleInterval,
		IntervalMinutes: 15,
		Recipients:      []string{"ops@example.com"},
		Format:          []domain.ReportFormat{domain.FormatCSV},
		Enabled:         true,
	}
}

func TestScheduledQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(q *domain.ScheduledQuery)
		wantErr string
	}{
		{name: "valid", mutate: func(q *domain.ScheduledQuery) {}},
		{
			name: "both payloads",
			mutate: func(q *domain.ScheduledQuery) {
				q.QueryDefinition = &domain.QueryDefinition{Table: "t"}
			},
			wantErr: "not both",
		},
		{
			name:    "no payload",
			mutate:  func(q *domain.ScheduledQuery) { q.SQL = "" },
			wantErr: "either query_definition or sql is required",
		},
		{
			name: "visual without definition",
			mutate: func(q *domain.ScheduledQuery) {
				q.QueryType = domain.QueryTypeVisual
			},
			wantErr: "requires query_definition",
		},
		{
			name:    "interval below one",
			mutate:  func(q *domain.ScheduledQuery) { q.IntervalMinutes = 0 },
			wantErr: "at least 1",
		},
		{
			name: "cron without expression",
			mutate: func(q *domain.ScheduledQuery) {
				q.ScheduleType = domain.ScheduleCron
				q.IntervalMinutes = 0
			},
			wantErr: "cron_expression is required",
		},
		{
			name:    "no recipients",
			mutate:  func(q *domain.ScheduledQuery) { q.Recipients = nil },
			wantErr: "recipient",
		},
		{
			name:    "bad recipient",
			mutate:  func(q *domain.ScheduledQuery) { q.Recipients = []string{"not-an-email"} },
			wantErr: "invalid recipient",
		},
		{
			name:    "unknown format",
			mutate:  func(q *domain.ScheduledQuery) { q.Format = []domain.ReportFormat{"docx"} },
			wantErr: "unsupported format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validScheduledQuery()
			tt.mutate(q)
			err := q.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, apperrors.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQueryDefinition_CloneIsDeep(t *testing.T) {
	def := domain.QueryDefinition{
		Table:   "orders",
		Columns: []string{"id"},
		Filters: []domain.Filter{{Column: "status", Operator: domain.OpIn, Value: []any{"a"}}},
		Limit:   domain.IntPtr(5),
	}

	clone := def.Clone()
	clone.Columns[0] = "total"
	clone.Filters[0].Value.([]any)[0] = "b"
	*clone.Limit = 10

	assert.Equal(t, "id", def.Columns[0])
	assert.Equal(t, "a", def.Filters[0].Value.([]any)[0])
	assert.Equal(t, 5, *def.Limit)
}
