package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/logger"
	"github.com/dataask/dataask/core/observability"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// backend is one open pool against a target database.
type backend interface {
	// query runs sql with args and returns at most limit rows (limit <= 0
	// means all rows)
	query(ctx context.Context, sql string, args []any, limit int) (*domain.ResultSet, error)
	close() error
}

// opener opens a backend from decrypted credentials.
type opener func(ctx context.Context, creds domain.Credentials) (backend, error)

// DefaultPoolIdleTimeout is how long an unused pool stays open. Pools of
// rotated credentials are never asked for again and age out this way.
const DefaultPoolIdleTimeout = 15 * time.Minute

// pooled is an open backend with its usage bookkeeping, guarded by
// DirectGateway.mu.
type pooled struct {
	key      string
	b        backend
	refs     int
	lastUsed time.Time
}

// DirectGateway executes against target databases with in-process drivers.
// Pools are opened lazily per distinct credential set and closed after
// sitting idle, or on Close.
type DirectGateway struct {
	openers     map[Dialect]opener
	timeout     time.Duration
	idleTimeout time.Duration
	now         func() time.Time

	opening singleflight.Group

	mu     sync.Mutex
	pools  map[string]*pooled
	closed bool
	log    logger.Logger
}

type DirectOption func(*DirectGateway)

// WithPoolIdleTimeout overrides DefaultPoolIdleTimeout.
func WithPoolIdleTimeout(d time.Duration) DirectOption {
	return func(g *DirectGateway) {
		if d > 0 {
			g.idleTimeout = d
		}
	}
}

// NewDirectGateway creates a gateway serving the given dialects. Dialects
// without an in-process driver are ignored.
func NewDirectGateway(dialects []Dialect, timeout time.Duration, opts ...DirectOption) *DirectGateway {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	g := &DirectGateway{
		openers:     make(map[Dialect]opener),
		timeout:     timeout,
		idleTimeout: DefaultPoolIdleTimeout,
		now:         time.Now,
		pools:       make(map[string]*pooled),
		log:         logger.New("gateway:direct"),
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, d := range dialects {
		switch d {
		case Postgres:
			g.openers[d] = openPostgres
		case MySQL:
			g.openers[d] = openMySQL
		case MSSQL:
			g.openers[d] = openMSSQL
		}
	}
	return g
}

// Serves reports whether d has a registered driver.
func (g *DirectGateway) Serves(d Dialect) bool {
	_, ok := g.openers[d]
	return ok
}

// SupportsBinding reports whether d accepts bound arguments here.
func (g *DirectGateway) SupportsBinding(d Dialect) bool {
	return g.Serves(d) && CapabilitiesOf(d).BindStyle != 0
}

// TestConnection opens (or reuses) a pool and runs SELECT 1.
func (g *DirectGateway) TestConnection(ctx context.Context, dialect Dialect, creds domain.Credentials) (*domain.ConnectionTest, error) {
	if _, err := g.run(ctx, dialect, creds, "test", "SELECT 1 as test", nil, 1); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeGatewayTimeout) {
			return &domain.ConnectionTest{Status: "error", Message: "Connection test timed out", Error: "timeout"}, nil
		}
		return &domain.ConnectionTest{Status: "error", Message: "Connection failed: " + err.Error(), Error: err.Error()}, nil
	}
	return &domain.ConnectionTest{Status: "success", Message: "Connection successful"}, nil
}

// ListTables reads information_schema columns and groups them by table.
func (g *DirectGateway) ListTables(ctx context.Context, dialect Dialect, creds domain.Credentials) ([]domain.Table, error) {
	q, ok := metadataQueries[dialect]
	if !ok {
		return nil, unsupported(dialect)
	}
	rs, err := g.run(ctx, dialect, creds, "list_tables", q.tables, nil, 0)
	if err != nil {
		return nil, err
	}
	return foldTables(rs), nil
}

// ListConstraints reads foreign key relations.
func (g *DirectGateway) ListConstraints(ctx context.Context, dialect Dialect, creds domain.Credentials) ([]domain.Constraint, error) {
	q, ok := metadataQueries[dialect]
	if !ok {
		return nil, unsupported(dialect)
	}
	rs, err := g.run(ctx, dialect, creds, "list_constraints", q.constraints, nil, 0)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Constraint, 0, len(rs.Data))
	for _, row := range rs.Data {
		out = append(out, domain.Constraint{
			ConstraintName:     text(row["constraint_name"]),
			ConstraintType:     "FOREIGN KEY",
			ConstraintTable:    text(row["table_name"]),
			ConstraintColumn:   text(row["column_name"]),
			ConstraintedTable:  text(row["referenced_table"]),
			ConstraintedColumn: text(row["referenced_column"]),
		})
	}
	return out, nil
}

// PreviewTable selects up to limit rows of table.
func (g *DirectGateway) PreviewTable(ctx context.Context, dialect Dialect, creds domain.Credentials, table string, limit int) (any, error) {
	rs, err := g.run(ctx, dialect, creds, "preview", "SELECT * FROM "+table, nil, limit)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// RunQuery executes sql as-is.
func (g *DirectGateway) RunQuery(ctx context.Context, dialect Dialect, creds domain.Credentials, sql string, limit int) (any, error) {
	rs, err := g.run(ctx, dialect, creds, "query", sql, nil, limit)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// RunBoundQuery executes sql with positional args.
func (g *DirectGateway) RunBoundQuery(ctx context.Context, dialect Dialect, creds domain.Credentials, sql string, args []any, limit int) (any, error) {
	rs, err := g.run(ctx, dialect, creds, "query", sql, args, limit)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (g *DirectGateway) run(ctx context.Context, dialect Dialect, creds domain.Credentials, op, sql string, args []any, limit int) (*domain.ResultSet, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	rs, err := g.runOnPool(ctx, dialect, creds, sql, args, limit)
	observability.RecordGatewayOperation(ctx, "direct", string(dialect), op, err == nil, float64(time.Since(start).Milliseconds()))
	return rs, err
}

func (g *DirectGateway) runOnPool(ctx context.Context, dialect Dialect, creds domain.Credentials, sql string, args []any, limit int) (*domain.ResultSet, error) {
	b, release, err := g.acquire(ctx, dialect, creds)
	if err != nil {
		return nil, err
	}
	defer release()
	rs, err := b.query(ctx, sql, args, limit)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.WrapError(apperrors.ErrCodeGatewayTimeout,
				fmt.Sprintf("query did not finish within %s", g.timeout), err)
		}
		return nil, apperrors.WrapError(apperrors.ErrCodeExecutionFailed, "query failed", err)
	}
	return rs, nil
}

// acquire returns the pool for creds, opening it if needed, and a release
// func the caller must call when done. Opens for different credentials run
// concurrently; concurrent opens of the same credentials share one attempt.
func (g *DirectGateway) acquire(ctx context.Context, dialect Dialect, creds domain.Credentials) (backend, func(), error) {
	open, ok := g.openers[dialect]
	if !ok {
		return nil, nil, unsupported(dialect)
	}
	key, err := poolKey(dialect, creds)
	if err != nil {
		return nil, nil, err
	}

	g.mu.Lock()
	idle := g.takeIdle()
	p, ok := g.pools[key]
	if ok {
		p.refs++
	}
	g.mu.Unlock()
	g.closePools(idle)
	if ok {
		return p.b, g.releaser(p), nil
	}

	v, err, _ := g.opening.Do(key, func() (any, error) {
		g.mu.Lock()
		existing, ok := g.pools[key]
		g.mu.Unlock()
		if ok {
			return existing, nil
		}

		g.log.Debugf("Opening %s pool for %v", dialect, observability.RedactMap(creds))
		b, err := open(ctx, creds)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, apperrors.WrapError(apperrors.ErrCodeGatewayTimeout, "connect timed out", err)
			}
			return nil, apperrors.WrapError(apperrors.ErrCodeGatewayUnavailable,
				fmt.Sprintf("connect to %s", dialect), err)
		}

		g.mu.Lock()
		defer g.mu.Unlock()
		if g.closed {
			_ = b.close()
			return nil, apperrors.NewAppError(apperrors.ErrCodeGatewayUnavailable, "direct gateway is closed", nil)
		}
		created := &pooled{key: key, b: b, lastUsed: g.now()}
		g.pools[key] = created
		return created, nil
	})
	if err != nil {
		return nil, nil, err
	}

	p = v.(*pooled)
	g.mu.Lock()
	p.refs++
	g.mu.Unlock()
	return p.b, g.releaser(p), nil
}

func (g *DirectGateway) releaser(p *pooled) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			p.refs--
			p.lastUsed = g.now()
			g.mu.Unlock()
		})
	}
}

// takeIdle removes pools that are unused and idle past idleTimeout. The
// caller holds g.mu and closes the result after unlocking.
func (g *DirectGateway) takeIdle() []*pooled {
	var idle []*pooled
	cutoff := g.now().Add(-g.idleTimeout)
	for key, p := range g.pools {
		if p.refs == 0 && p.lastUsed.Before(cutoff) {
			idle = append(idle, p)
			delete(g.pools, key)
		}
	}
	return idle
}

func (g *DirectGateway) closePools(pools []*pooled) error {
	if len(pools) == 0 {
		return nil
	}
	g.log.Debugf("Closing %d pool(s)", len(pools))

	var wg sync.WaitGroup
	errChan := make(chan error, len(pools))
	for _, p := range pools {
		wg.Add(1)
		go func(p *pooled) {
			defer wg.Done()
			if err := p.b.close(); err != nil {
				errChan <- fmt.Errorf("pool %s: %w", p.key[:8], err)
			}
		}(p)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		g.log.Warnf("Closing pools: %v", err)
	}
	return err
}

// Close closes every open pool in parallel and joins their errors. Pools
// opened after Close are closed immediately.
func (g *DirectGateway) Close() error {
	g.mu.Lock()
	g.closed = true
	pools := make([]*pooled, 0, len(g.pools))
	for _, p := range g.pools {
		pools = append(pools, p)
	}
	g.pools = make(map[string]*pooled)
	g.mu.Unlock()

	return g.closePools(pools)
}

// poolKey fingerprints dialect and credentials without keeping secrets in
// the map key.
func poolKey(dialect Dialect, creds domain.Credentials) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", apperrors.WrapError(apperrors.ErrCodeValidationError, "credentials are not serialisable", err)
	}
	sum := sha256.Sum256(append([]byte(string(dialect)+":"), raw...))
	return hex.EncodeToString(sum[:]), nil
}

func unsupported(d Dialect) error {
	return apperrors.NewAppError(apperrors.ErrCodeUnsupportedDialect,
		fmt.Sprintf("dialect '%s' has no direct driver", d), nil)
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

// foldTables groups information_schema column rows into tables, keeping
// the row order of the query.
func foldTables(rs *domain.ResultSet) []domain.Table {
	var tables []domain.Table
	index := make(map[string]int)
	for _, row := range rs.Data {
		schema, name := text(row["table_schema"]), text(row["table_name"])
		key := schema + "." + name
		i, ok := index[key]
		if !ok {
			i = len(tables)
			index[key] = i
			tables = append(tables, domain.Table{
				Name:       name,
				Properties: map[string]any{"schema": schema, "table": name},
			})
		}
		tables[i].Columns = append(tables[i].Columns, domain.Column{
			Name:    text(row["column_name"]),
			Type:    text(row["data_type"]),
			NotNull: text(row["is_nullable"]) == "NO",
		})
	}
	return tables
}
