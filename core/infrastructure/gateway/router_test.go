package gateway

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataask/dataask/core/domain"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// stubGateway answers every call with its own name.
type stubGateway struct {
	name        string
	serves      map[Dialect]bool
	tableCalls  atomic.Int32
	boundCalled bool
}

func (s *stubGateway) Serves(d Dialect) bool { return s.serves[d] }

func (s *stubGateway) SupportsBinding(d Dialect) bool { return s.serves[d] }

func (s *stubGateway) TestConnection(context.Context, Dialect, domain.Credentials) (*domain.ConnectionTest, error) {
	return &domain.ConnectionTest{Status: "success", Message: s.name}, nil
}

func (s *stubGateway) ListTables(context.Context, Dialect, domain.Credentials) ([]domain.Table, error) {
	s.tableCalls.Add(1)
	return []domain.Table{{Name: s.name}}, nil
}

func (s *stubGateway) ListConstraints(context.Context, Dialect, domain.Credentials) ([]domain.Constraint, error) {
	return nil, nil
}

func (s *stubGateway) PreviewTable(context.Context, Dialect, domain.Credentials, string, int) (any, error) {
	return s.name, nil
}

func (s *stubGateway) RunQuery(context.Context, Dialect, domain.Credentials, string, int) (any, error) {
	return s.name, nil
}

func (s *stubGateway) RunBoundQuery(context.Context, Dialect, domain.Credentials, string, []any, int) (any, error) {
	s.boundCalled = true
	return s.name, nil
}

func TestRouter_Dispatch(t *testing.T) {
	remote := &stubGateway{name: "http"}
	direct := &stubGateway{name: "direct", serves: map[Dialect]bool{Postgres: true}}
	r := &Router{remote: remote, direct: direct}
	ctx := context.Background()

	out, err := r.RunQuery(ctx, Postgres, nil, "SELECT 1", 0)
	require.NoError(t, err)
	assert.Equal(t, "direct", out)
	assert.Equal(t, "direct", r.Backend(Postgres))

	out, err = r.RunQuery(ctx, Snowflake, nil, "SELECT 1", 0)
	require.NoError(t, err)
	assert.Equal(t, "http", out)
	assert.Equal(t, "http", r.Backend(Snowflake))

	test, err := r.TestConnection(ctx, Snowflake, nil)
	require.NoError(t, err)
	assert.Equal(t, "http", test.Message)

	assert.True(t, r.SupportsBinding(Postgres))
	assert.False(t, r.SupportsBinding(MySQL))

	_, err = r.RunBoundQuery(ctx, Postgres, nil, "SELECT $1", []any{1}, 0)
	require.NoError(t, err)
	assert.True(t, direct.boundCalled)

	_, err = r.RunBoundQuery(ctx, MySQL, nil, "SELECT ?", []any{1}, 0)
	assert.Equal(t, apperrors.ErrCodeUnsupportedDialect, apperrors.CodeOf(err))
}

func TestRouter_WithoutDirect(t *testing.T) {
	r := NewRouter(&stubGateway{name: "http"}, nil)

	out, err := r.PreviewTable(context.Background(), Postgres, nil, "orders", 10)
	require.NoError(t, err)
	assert.Equal(t, "http", out)
	assert.False(t, r.SupportsBinding(Postgres))
}

func TestDirectGateway_Serves(t *testing.T) {
	g := NewDirectGateway([]Dialect{Postgres, MySQL, Snowflake}, 0)

	assert.True(t, g.Serves(Postgres))
	assert.True(t, g.Serves(MySQL))
	assert.False(t, g.Serves(Snowflake))
	assert.False(t, g.Serves(MSSQL))
	assert.True(t, g.SupportsBinding(MySQL))
	assert.NoError(t, g.Close())

	_, err := g.ListTables(context.Background(), Snowflake, nil)
	assert.Equal(t, apperrors.ErrCodeUnsupportedDialect, apperrors.CodeOf(err))
}

func TestPoolKey(t *testing.T) {
	a, err := poolKey(Postgres, domain.Credentials{"host": "a", "password": "x"})
	require.NoError(t, err)
	b, err := poolKey(Postgres, domain.Credentials{"password": "x", "host": "a"})
	require.NoError(t, err)
	c, err := poolKey(MySQL, domain.Credentials{"host": "a", "password": "x"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotContains(t, a, "x")
}

func TestMetadataCache(t *testing.T) {
	gw := &stubGateway{name: "orders"}
	cache := NewMetadataCache(gw, time.Minute)
	t.Cleanup(cache.Close)
	ctx := context.Background()
	creds := domain.Credentials{"host": "a"}

	for i := 0; i < 3; i++ {
		tables, err := cache.Tables(ctx, Postgres, creds)
		require.NoError(t, err)
		require.Len(t, tables, 1)
		assert.Equal(t, "orders", tables[0].Name)
	}
	assert.Equal(t, int32(1), gw.tableCalls.Load())

	cache.Invalidate(Postgres, creds)
	_, err := cache.Tables(ctx, Postgres, creds)
	require.NoError(t, err)
	assert.Equal(t, int32(2), gw.tableCalls.Load())
}

func TestMetadataCache_Disabled(t *testing.T) {
	gw := &stubGateway{name: "orders"}
	cache := NewMetadataCache(gw, 0)
	t.Cleanup(cache.Close)

	for i := 0; i < 2; i++ {
		_, err := cache.Tables(context.Background(), Postgres, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), gw.tableCalls.Load())
}
