// Package connection manages stored connections and the gateway calls made
// on their behalf: connectivity tests, schema metadata and table previews.
package connection

import (
	"context"
	"strings"
	"time"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/infrastructure/gateway"
	"github.com/dataask/dataask/core/logger"
	"github.com/dataask/dataask/core/query/compiler"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// DefaultPreviewLimit is the row count of a preview that asks for none.
const DefaultPreviewLimit = 10

// Encrypter seals credentials for storage.
type Encrypter interface {
	Encrypt(creds domain.Credentials) (string, error)
}

// TableLister returns table metadata, usually through a cache.
type TableLister interface {
	Tables(ctx context.Context, dialect interfaces.Dialect, creds domain.Credentials) ([]domain.Table, error)
}

// CreateRequest describes a new connection.
type CreateRequest struct {
	WorkspaceID string
	Name        string
	Description string
	Type        string
	Credentials domain.Credentials
	Settings    map[string]string
}

type Service struct {
	repo      interfaces.ConnectionRepository
	gateway   interfaces.Gateway
	decrypter interfaces.Decrypter
	encrypter Encrypter
	tables    TableLister
	now       func() time.Time
	log       logger.Logger
}

// NewService creates the service. A nil tables lister reads metadata
// straight from the gateway.
func NewService(
	repo interfaces.ConnectionRepository,
	gw interfaces.Gateway,
	decrypter interfaces.Decrypter,
	encrypter Encrypter,
	tables TableLister,
) *Service {
	return &Service{
		repo:      repo,
		gateway:   gw,
		decrypter: decrypter,
		encrypter: encrypter,
		tables:    tables,
		now:       time.Now,
		log:       logger.New("connection"),
	}
}

// Create validates the type, seals the credentials and stores the connection.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Connection, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.Validation("name is required")
	}
	if _, err := gateway.ResolveDialect(req.Type); err != nil {
		return nil, apperrors.Validation("invalid connection type '%s', must be one of: %s",
			req.Type, strings.Join(gateway.SupportedTypes(), ", "))
	}
	sealed, err := s.encrypter.Encrypt(req.Credentials)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrCodeInternalError, "failed to encrypt connection info", err)
	}
	c := &domain.Connection{
		WorkspaceID:   req.WorkspaceID,
		Name:          req.Name,
		Description:   req.Description,
		Type:          strings.ToLower(req.Type),
		EncryptedInfo: sealed,
		Settings:      req.Settings,
		Status:        "active",
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Infof("Created connection %s (%s)", c.ID, c.Type)
	return c, nil
}

func (s *Service) List(ctx context.Context, workspaceID string) ([]*domain.Connection, error) {
	return s.repo.List(ctx, workspaceID)
}

// Get returns id when it belongs to workspaceID.
func (s *Service) Get(ctx context.Context, workspaceID, id string) (*domain.Connection, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil || c.WorkspaceID != workspaceID {
		return nil, apperrors.NotFound("connection", id)
	}
	return c, nil
}

// Test checks connectivity and records the outcome on the connection.
// A failed check is a result, not an error.
func (s *Service) Test(ctx context.Context, workspaceID, id string) (*domain.ConnectionTest, error) {
	c, d, creds, err := s.open(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	result, err := s.gateway.TestConnection(ctx, d, creds)
	if err != nil {
		result = &domain.ConnectionTest{Status: "error", Message: "Connection test failed: " + err.Error(), Error: err.Error()}
	}
	if err := s.repo.RecordTest(context.WithoutCancel(ctx), c.ID, *result, s.now().UTC()); err != nil {
		s.log.Errorf("Failed to record connection test for %s: %v", c.ID, err)
	}
	return result, nil
}

func (s *Service) Tables(ctx context.Context, workspaceID, id string) ([]domain.Table, error) {
	_, d, creds, err := s.open(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	return s.listTables(ctx, d, creds)
}

func (s *Service) Constraints(ctx context.Context, workspaceID, id string) ([]domain.Constraint, error) {
	_, d, creds, err := s.open(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	return s.gateway.ListConstraints(ctx, d, creds)
}

// Preview returns up to limit rows of table. The table must appear in the
// connection's metadata; limit <= 0 uses DefaultPreviewLimit.
func (s *Service) Preview(ctx context.Context, workspaceID, id, table string, limit int) (any, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if limit > domain.MaxRowLimit {
		limit = domain.MaxRowLimit
	}
	_, d, creds, err := s.open(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	tables, err := s.listTables(ctx, d, creds)
	if err != nil {
		return nil, err
	}
	if _, ok := compiler.NewCatalog(tables)[strings.ToLower(table)]; !ok {
		return nil, apperrors.NotFound("table", table)
	}
	return s.gateway.PreviewTable(ctx, d, creds, table, limit)
}

func (s *Service) listTables(ctx context.Context, d interfaces.Dialect, creds domain.Credentials) ([]domain.Table, error) {
	if s.tables != nil {
		return s.tables.Tables(ctx, d, creds)
	}
	return s.gateway.ListTables(ctx, d, creds)
}

func (s *Service) open(ctx context.Context, workspaceID, id string) (*domain.Connection, interfaces.Dialect, domain.Credentials, error) {
	c, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, "", nil, err
	}
	d, err := gateway.ResolveDialect(c.Type)
	if err != nil {
		return nil, "", nil, err
	}
	creds, err := s.decrypter.Decrypt(c.EncryptedInfo)
	if err != nil {
		return nil, "", nil, apperrors.WrapError(apperrors.ErrCodeInternalError, "failed to decrypt connection info", err)
	}
	return c, d, creds, nil
}
