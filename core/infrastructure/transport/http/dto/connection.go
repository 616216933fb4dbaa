package dto

import (
	"github.com/dataask/dataask/core/application/connection"
	"github.com/dataask/dataask/core/domain"
)

// CreateConnectionRequest registers a target database.
type CreateConnectionRequest struct {
	Name        string             `json:"name" validate:"required,max=255"`
	Description string             `json:"description"`
	Type        string             `json:"type" validate:"required"`
	Credentials domain.Credentials `json:"connection_info" validate:"required"`
	Settings    map[string]string  `json:"settings"`
}

func (r CreateConnectionRequest) ToRequest(workspaceID string) connection.CreateRequest {
	return connection.CreateRequest{
		WorkspaceID: workspaceID,
		Name:        r.Name,
		Description: r.Description,
		Type:        r.Type,
		Credentials: r.Credentials,
		Settings:    r.Settings,
	}
}
