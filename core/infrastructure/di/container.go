package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dataask/dataask/core/application/connection"
	"github.com/dataask/dataask/core/application/execution"
	"github.com/dataask/dataask/core/application/scheduler"
	"github.com/dataask/dataask/core/config"
	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/infrastructure/crypto"
	"github.com/dataask/dataask/core/infrastructure/delivery"
	"github.com/dataask/dataask/core/infrastructure/gateway"
	"github.com/dataask/dataask/core/infrastructure/storage/mongo"
	"github.com/dataask/dataask/core/infrastructure/storage/sqlite"
	httptransport "github.com/dataask/dataask/core/infrastructure/transport/http"
	"github.com/dataask/dataask/core/infrastructure/transport/http/middleware"
	"github.com/dataask/dataask/core/logger"
)

// Container holds all dependencies
type Container struct {
	Config *config.Config

	Store            *sqlite.Store
	ScheduledQueries *sqlite.ScheduledQueryRepo
	History          *sqlite.QueryHistoryRepo
	Connections      *sqlite.ConnectionRepo

	Gateway  *gateway.Router
	Direct   *gateway.DirectGateway
	Metadata *gateway.MetadataCache

	Execution         *execution.Service
	ConnectionService *connection.Service
	Runner            *scheduler.Runner
	Manager           *scheduler.Manager
	SchedulerService  *scheduler.Service

	Redis       *redis.Client
	RateLimiter middleware.RateLimiter

	historySink *mongo.HistorySink
	log         logger.Logger
}

// NewContainer opens the store, runs migrations and wires every service.
// On error everything opened so far is closed.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg, log: logger.New("di")}
	if err := c.build(ctx); err != nil {
		_ = c.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context) (err error) {
	cfg := c.Config

	if c.Store, err = sqlite.OpenStore(cfg.Database.Path, 0); err != nil {
		return err
	}
	if err = sqlite.Migrate(c.Store.Write); err != nil {
		return err
	}
	c.ScheduledQueries = sqlite.NewScheduledQueryRepo(c.Store)
	c.History = sqlite.NewQueryHistoryRepo(c.Store)
	c.Connections = sqlite.NewConnectionRepo(c.Store)

	cipher, err := crypto.NewCredentialCipher(cfg.Encryption.Key, cfg.Encryption.Salt)
	if err != nil {
		return err
	}

	if err = c.buildGateway(); err != nil {
		return err
	}

	if cfg.Redis.Addr != "" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = c.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
	}

	opts := []execution.Option{execution.WithIdentifierCheck(c.Metadata)}
	if cfg.History.URI != "" {
		if c.historySink, err = mongo.NewHistorySink(ctx, cfg.History); err != nil {
			return err
		}
		opts = append(opts, execution.WithHistorySink(c.historySink))
	}
	c.Execution = execution.NewService(c.Connections, c.History, c.Gateway, cipher, opts...)
	c.ConnectionService = connection.NewService(c.Connections, c.Gateway, cipher, cipher, c.Metadata)

	c.Runner = scheduler.NewRunner(c.ScheduledQueries, c.Connections, c.Execution,
		delivery.NewSMTPService(cfg.SMTP), cfg.Scheduler.RunTimeout)
	c.Manager = scheduler.NewManager(c.ScheduledQueries, c.Runner, c.runGuard())
	c.SchedulerService = scheduler.NewService(c.ScheduledQueries, c.Connections, c.Manager, c.Runner)

	if cfg.Server.RateLimit.Requests > 0 {
		c.RateLimiter = middleware.NewRedisRateLimiter(c.Redis)
	}

	return nil
}

func (c *Container) buildGateway() error {
	cfg := c.Config.Gateway
	remote := gateway.NewHTTPGateway(cfg.URL, gateway.WithTimeouts(0, 0, cfg.Timeout))

	if cfg.Direct.Enabled {
		dialects := make([]gateway.Dialect, 0, len(cfg.Direct.Dialects))
		for _, name := range cfg.Direct.Dialects {
			d, err := gateway.ResolveDialect(name)
			if err != nil {
				return err
			}
			dialects = append(dialects, d)
		}
		c.Direct = gateway.NewDirectGateway(dialects, cfg.Timeout)
		c.log.Infof("Direct gateway serving %v", cfg.Direct.Dialects)
	}

	c.Gateway = gateway.NewRouter(remote, c.Direct)
	c.Metadata = gateway.NewMetadataCache(c.Gateway, cfg.MetadataTTL)
	return nil
}

func (c *Container) runGuard() interfaces.RunGuard {
	if c.Config.Scheduler.Lock.Backend == config.LockRedis {
		return scheduler.NewRedisGuard(c.Redis, c.Config.Scheduler.Lock.TTL)
	}
	return scheduler.NewMemoryGuard()
}

// Services returns the use cases served over HTTP.
func (c *Container) Services() httptransport.Services {
	return httptransport.Services{
		Queries:          c.Execution,
		Connections:      c.ConnectionService,
		ScheduledQueries: c.SchedulerService,
		History:          c.History,
	}
}

// Close closes all resources
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.Manager != nil {
		errs = append(errs, c.Manager.Stop(ctx))
	}
	if c.Metadata != nil {
		c.Metadata.Close()
	}
	if c.Direct != nil {
		errs = append(errs, c.Direct.Close())
	}
	if c.historySink != nil {
		errs = append(errs, c.historySink.Close(ctx))
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
