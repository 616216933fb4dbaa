package gateway

import (
	"context"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
)

var (
	_ interfaces.Gateway          = (*Router)(nil)
	_ interfaces.BoundQueryRunner = (*Router)(nil)
	_ interfaces.Gateway          = (*HTTPGateway)(nil)
	_ interfaces.Gateway          = (*DirectGateway)(nil)
	_ interfaces.BoundQueryRunner = (*DirectGateway)(nil)
)

// directBackend is the subset of DirectGateway the router needs.
type directBackend interface {
	interfaces.Gateway
	interfaces.BoundQueryRunner
	Serves(d Dialect) bool
}

// Router sends each call to the direct backend when it serves the
// dialect, otherwise to the HTTP gateway.
type Router struct {
	remote interfaces.Gateway
	direct directBackend
}

// NewRouter creates a router. direct may be nil.
func NewRouter(remote interfaces.Gateway, direct *DirectGateway) *Router {
	r := &Router{remote: remote}
	if direct != nil {
		r.direct = direct
	}
	return r
}

func (r *Router) pick(d Dialect) interfaces.Gateway {
	if r.direct != nil && r.direct.Serves(d) {
		return r.direct
	}
	return r.remote
}

// Backend names the backend serving d.
func (r *Router) Backend(d Dialect) string {
	if r.direct != nil && r.direct.Serves(d) {
		return "direct"
	}
	return "http"
}

func (r *Router) TestConnection(ctx context.Context, d Dialect, creds domain.Credentials) (*domain.ConnectionTest, error) {
	return r.pick(d).TestConnection(ctx, d, creds)
}

func (r *Router) ListTables(ctx context.Context, d Dialect, creds domain.Credentials) ([]domain.Table, error) {
	return r.pick(d).ListTables(ctx, d, creds)
}

func (r *Router) ListConstraints(ctx context.Context, d Dialect, creds domain.Credentials) ([]domain.Constraint, error) {
	return r.pick(d).ListConstraints(ctx, d, creds)
}

func (r *Router) PreviewTable(ctx context.Context, d Dialect, creds domain.Credentials, table string, limit int) (any, error) {
	return r.pick(d).PreviewTable(ctx, d, creds, table, limit)
}

func (r *Router) RunQuery(ctx context.Context, d Dialect, creds domain.Credentials, sql string, limit int) (any, error) {
	return r.pick(d).RunQuery(ctx, d, creds, sql, limit)
}

// SupportsBinding reports whether bound queries can run for d.
func (r *Router) SupportsBinding(d Dialect) bool {
	return r.direct != nil && r.direct.SupportsBinding(d)
}

func (r *Router) RunBoundQuery(ctx context.Context, d Dialect, creds domain.Credentials, sql string, args []any, limit int) (any, error) {
	if !r.SupportsBinding(d) {
		return nil, unsupported(d)
	}
	return r.direct.RunBoundQuery(ctx, d, creds, sql, args, limit)
}
