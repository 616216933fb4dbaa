// Package execution turns a query request into SQL, runs it through the
// gateway and records the attempt in query history.
package execution

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/infrastructure/gateway"
	"github.com/dataask/dataask/core/logger"
	"github.com/dataask/dataask/core/observability"
	"github.com/dataask/dataask/core/query/compiler"
	"github.com/dataask/dataask/core/query/params"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// Request is one execution request. Exactly one of Definition and SQL must
// be set.
type Request struct {
	WorkspaceID          string
	ConnectionID         string
	UserID               string
	Definition           *domain.QueryDefinition
	SQL                  string
	Parameters           domain.ParameterValues
	ParameterDefinitions []domain.ParameterDefinition
	// Limit caps returned rows; <= 0 means no cap. A visual query's own
	// limit wins.
	Limit int
}

// Result is a successful execution.
type Result struct {
	HistoryID       string  `json:"history_id"`
	SQL             string  `json:"sql"`
	Data            any     `json:"data"`
	RowCount        *int    `json:"row_count"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

// TableLister supplies schema metadata for identifier checks.
type TableLister interface {
	Tables(ctx context.Context, dialect gateway.Dialect, creds domain.Credentials) ([]domain.Table, error)
}

// Option configures a Service.
type Option func(*Service)

// WithHistorySink adds a sink that receives every stored history entry.
func WithHistorySink(sink interfaces.HistorySink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sink) }
}

// WithIdentifierCheck rejects visual queries naming tables or columns that
// tables does not list.
func WithIdentifierCheck(tables TableLister) Option {
	return func(s *Service) { s.tables = tables }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service executes queries.
type Service struct {
	connections interfaces.ConnectionRepository
	history     interfaces.HistoryRepository
	gateway     interfaces.Gateway
	decrypter   interfaces.Decrypter
	sinks       []interfaces.HistorySink
	tables      TableLister
	now         func() time.Time
	log         logger.Logger
}

// NewService creates an execution service.
func NewService(
	connections interfaces.ConnectionRepository,
	history interfaces.HistoryRepository,
	gw interfaces.Gateway,
	decrypter interfaces.Decrypter,
	opts ...Option,
) *Service {
	s := &Service{
		connections: connections,
		history:     history,
		gateway:     gw,
		decrypter:   decrypter,
		now:         time.Now,
		log:         logger.New("execution"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// prepared is a request after parameter resolution and compilation.
type prepared struct {
	definition *domain.QueryDefinition
	sql        string
	limit      int
}

// Execute runs req and always writes one history entry, whatever the
// outcome. The returned error is the execution error, never a history
// write failure.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "query.execute",
		attribute.String(observability.AttrWorkspaceID, req.WorkspaceID),
		attribute.String(observability.AttrConnectionID, req.ConnectionID),
	)
	log := observability.WithTrace(ctx, s.log)

	start := s.now()
	entry := &domain.QueryHistory{
		ID:           uuid.NewString(),
		WorkspaceID:  req.WorkspaceID,
		ConnectionID: req.ConnectionID,
		UserID:       req.UserID,
		QueryType:    domain.QueryTypeSQL,
		ExecutedAt:   start.UTC(),
	}
	if req.Definition != nil {
		entry.QueryType = domain.QueryTypeVisual
	}

	var dialect gateway.Dialect
	data, sql, err := s.execute(ctx, req, entry, &dialect)
	elapsed := float64(s.now().Sub(start).Microseconds()) / 1000

	entry.SQL = sql
	entry.ExecutionTimeMs = elapsed
	if err != nil {
		msg := err.Error()
		entry.Status = domain.RunError
		entry.ErrorMessage = &msg
		log.Warnf("Query execution failed after %.1fms: %v", elapsed, err)
	} else {
		entry.Status = domain.RunSuccess
		entry.RowCount = domain.RowCount(data)
		log.Debugf("Query executed in %.1fms", elapsed)
	}
	s.record(ctx, entry)

	observability.RecordQueryExecution(ctx, string(dialect), string(entry.QueryType), err == nil, elapsed)
	observability.EndSpan(span, err)

	if err != nil {
		return nil, err
	}
	return &Result{
		HistoryID:       entry.ID,
		SQL:             sql,
		Data:            data,
		RowCount:        entry.RowCount,
		ExecutionTimeMs: elapsed,
	}, nil
}

func (s *Service) execute(ctx context.Context, req Request, entry *domain.QueryHistory, dialect *gateway.Dialect) (any, string, error) {
	p, err := s.prepare(req)
	if err != nil {
		if p == nil {
			return nil, "", err
		}
		entry.QueryDefinition = p.definition
		return nil, p.sql, err
	}
	entry.QueryDefinition = p.definition

	conn, err := s.connections.Get(ctx, req.ConnectionID)
	if err != nil {
		return nil, p.sql, err
	}
	if conn == nil || (req.WorkspaceID != "" && conn.WorkspaceID != req.WorkspaceID) {
		return nil, p.sql, apperrors.NotFound("connection", req.ConnectionID)
	}

	d, err := gateway.ResolveDialect(conn.Type)
	if err != nil {
		return nil, p.sql, err
	}
	*dialect = d

	creds, err := s.decrypter.Decrypt(conn.EncryptedInfo)
	if err != nil {
		return nil, p.sql, apperrors.WrapError(apperrors.ErrCodeExecutionFailed, "failed to decrypt connection info", err)
	}

	if p.definition != nil && s.tables != nil {
		tables, err := s.tables.Tables(ctx, d, creds)
		if err != nil {
			return nil, p.sql, err
		}
		if err := compiler.ValidateIdentifiers(*p.definition, compiler.NewCatalog(tables)); err != nil {
			return nil, p.sql, err
		}
	}

	data, err := s.dispatch(ctx, d, creds, p)
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.WrapError(apperrors.ErrCodeExecutionFailed, "query execution failed", err)
		}
		return nil, p.sql, err
	}
	return data, p.sql, nil
}

// prepare resolves parameters and produces the final SQL. The returned
// prepared value is non-nil whenever the query type could be determined,
// so callers can record what was attempted.
func (s *Service) prepare(req Request) (*prepared, error) {
	hasDefinition := req.Definition != nil
	hasSQL := strings.TrimSpace(req.SQL) != ""
	if hasDefinition == hasSQL {
		return nil, apperrors.Validation("exactly one of query_definition or sql is required")
	}

	values, err := params.ResolveDefaults(req.ParameterDefinitions, req.Parameters)
	if err != nil {
		return nil, err
	}

	if !hasDefinition {
		return &prepared{sql: params.Substitute(req.SQL, values), limit: req.Limit}, nil
	}

	resolved := params.SubstituteQueryDefinition(*req.Definition, values)
	p := &prepared{definition: &resolved, limit: req.Limit}
	if err := compiler.Validate(resolved); err != nil {
		return p, err
	}
	if resolved.Limit != nil {
		p.limit = *resolved.Limit
	}
	p.sql = compiler.Compile(resolved)
	return p, nil
}

// dispatch sends p to the gateway. On the bound path p.sql is replaced with
// the placeholder statement so history records what the backend received;
// the bound values stay recoverable from the resolved definition.
func (s *Service) dispatch(ctx context.Context, d gateway.Dialect, creds domain.Credentials, p *prepared) (any, error) {
	if p.definition != nil {
		if runner, ok := s.gateway.(interfaces.BoundQueryRunner); ok && runner.SupportsBinding(d) {
			sql, args := compiler.CompileBound(*p.definition, gateway.CapabilitiesOf(d).BindStyle)
			p.sql = sql
			return runner.RunBoundQuery(ctx, d, creds, sql, args, p.limit)
		}
	}
	return s.gateway.RunQuery(ctx, d, creds, p.sql, p.limit)
}

func (s *Service) record(ctx context.Context, entry *domain.QueryHistory) {
	// history must be written even if the caller's context is already done
	ctx = context.WithoutCancel(ctx)
	if err := s.history.Create(ctx, entry); err != nil {
		s.log.Errorf("Failed to save query history %s: %v", entry.ID, err)
		return
	}
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, entry); err != nil {
			s.log.Warnf("History sink failed for %s: %v", entry.ID, err)
		}
	}
}
