package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataask/dataask/core/application/scheduler"
	"github.com/dataask/dataask/core/config"
	"github.com/dataask/dataask/core/infrastructure/gateway"
)

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
gateway:
  url: http://gateway.invalid
encryption:
  key: test-passphrase
` + extra))
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "dataask.sqlite")
	return cfg
}

func TestNewContainer(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, testConfig(t, ""))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close(ctx)) })

	assert.Nil(t, c.Redis)
	assert.Nil(t, c.RateLimiter)
	assert.Nil(t, c.Direct)
	assert.IsType(t, &scheduler.MemoryGuard{}, c.runGuard())

	svc := c.Services()
	assert.NotNil(t, svc.Queries)
	assert.NotNil(t, svc.Connections)
	assert.NotNil(t, svc.ScheduledQueries)
	assert.NotNil(t, svc.History)

	list, err := c.SchedulerService.List(ctx, "ws1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNewContainer_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	cfg := testConfig(t, `
redis:
  addr: `+mr.Addr()+`
scheduler:
  lock:
    backend: redis
server:
  rate_limit:
    requests: 100
`)
	cfg.Gateway.Direct = config.DirectConfig{Enabled: true, Dialects: []string{"postgres"}}

	c, err := NewContainer(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close(ctx)) })

	assert.NotNil(t, c.Redis)
	assert.NotNil(t, c.RateLimiter)
	assert.IsType(t, &scheduler.RedisGuard{}, c.runGuard())
	require.NotNil(t, c.Direct)
	assert.Equal(t, "direct", c.Gateway.Backend(gateway.Postgres))
}

func TestNewContainer_RejectsUnknownDirectDialect(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Gateway.Direct = config.DirectConfig{Enabled: true, Dialects: []string{"oracle"}}

	_, err := NewContainer(context.Background(), cfg)
	assert.Error(t, err)
}
