package dto

import (
	"github.com/dataask/dataask/core/application/execution"
	"github.com/dataask/dataask/core/domain"
)

// ExecuteQueryRequest is the body of an ad-hoc query. Exactly one of
// QueryDefinition and SQL is expected; the execution service enforces it.
type ExecuteQueryRequest struct {
	QueryDefinition      *domain.QueryDefinition      `json:"query_definition"`
	SQL                  string                       `json:"sql"`
	Parameters           domain.ParameterValues       `json:"parameters"`
	ParameterDefinitions []domain.ParameterDefinition `json:"parameter_definitions" validate:"omitempty,dive"`
	Limit                int                          `json:"limit" validate:"omitempty,min=1,max=10000"`
}

// ToRequest binds the body to its workspace, connection and caller.
func (r ExecuteQueryRequest) ToRequest(workspaceID, connectionID, userID string) execution.Request {
	return execution.Request{
		WorkspaceID:          workspaceID,
		ConnectionID:         connectionID,
		UserID:               userID,
		Definition:           r.QueryDefinition,
		SQL:                  r.SQL,
		Parameters:           r.Parameters,
		ParameterDefinitions: r.ParameterDefinitions,
		Limit:                r.Limit,
	}
}
