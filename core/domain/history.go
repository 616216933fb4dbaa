package domain

import "time"

// QueryHistory is the immutable audit record of one execution attempt.
type QueryHistory struct {
	ID              string           `json:"id" bson:"_id"`
	WorkspaceID     string           `json:"workspace_id" bson:"workspace_id"`
	ConnectionID    string           `json:"connection_id" bson:"connection_id"`
	UserID          string           `json:"user_id,omitempty" bson:"user_id,omitempty"`
	QueryType       QueryType        `json:"query_type" bson:"query_type"`
	QueryDefinition *QueryDefinition `json:"query_definition,omitempty" bson:"query_definition,omitempty"`
	SQL             string           `json:"sql" bson:"sql"`
	Status          RunStatus        `json:"status" bson:"status"`
	ErrorMessage    *string          `json:"error_message" bson:"error_message,omitempty"`
	RowCount        *int             `json:"row_count" bson:"row_count,omitempty"`
	ExecutionTimeMs float64          `json:"execution_time_ms" bson:"execution_time_ms"`
	ExecutedAt      time.Time        `json:"executed_at" bson:"executed_at"`
}

// HistoryFilter scopes a history listing.
type HistoryFilter struct {
	WorkspaceID  string
	ConnectionID string
	Limit        int
	Offset       int
}
