package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dataask/dataask/core/cli/internal"
	"github.com/dataask/dataask/core/config"
	"github.com/dataask/dataask/core/infrastructure/di"
	httptransport "github.com/dataask/dataask/core/infrastructure/transport/http"
	"github.com/dataask/dataask/core/logger"
	"github.com/dataask/dataask/core/observability"
)

var (
	port        string
	watch       bool
	noScheduler bool
)

// serveCmd runs the HTTP API and the scheduler.
var serveCmd = &cobra.Command{
	Use:           "serve",
	Short:         "Serve the HTTP API and run scheduled queries",
	RunE:          runServe,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Server port (overrides config file and PORT env var)")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Restart when the config file changes")
	serveCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Serve the API without firing scheduled queries")
}

// instance is one running configuration of the service.
type instance struct {
	container *di.Container
	server    *httptransport.Server
	providers *observability.Providers
}

func startInstance(ctx context.Context, cfg *config.Config) (*instance, error) {
	log := logger.New("main")

	providers, err := observability.Setup(ctx, GetVersion())
	if err != nil {
		return nil, logger.WithTag("observability", err)
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, logger.WithTag("di", err)
	}

	server := httptransport.NewServer(httptransport.Options{
		Port:           internal.ResolvePort(port, cfg),
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Scheduler.RunTimeout + time.Minute,
		RateLimiter:    container.RateLimiter,
		RateLimit:      cfg.Server.RateLimit.Requests,
		RateWindow:     cfg.Server.RateLimit.Window,
	})
	httptransport.RegisterRoutes(server.Router(), container.Services())

	inst := &instance{container: container, server: server, providers: providers}

	if cfg.Scheduler.IsEnabled() && !noScheduler {
		if err := container.Manager.Bootstrap(ctx); err != nil {
			inst.stop()
			return nil, logger.WithTag("scheduler", err)
		}
		container.Manager.Start()
	} else {
		log.Warnf("Scheduler disabled, scheduled queries will only run on demand")
	}

	if err := server.Start(); err != nil {
		inst.stop()
		return nil, err
	}
	return inst, nil
}

// stop drains the server first so no new runs start, then the scheduler
// and stores.
func (i *instance) stop() {
	log := logger.New("main")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := i.server.Stop(ctx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	if err := i.container.Close(ctx); err != nil {
		log.Warnf("Shutdown: %v", err)
	}
	if err := i.providers.Shutdown(ctx); err != nil {
		log.Warnf("Telemetry shutdown: %v", err)
	}
	_ = logger.CloseLogFile()
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.New("serve")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var restart <-chan struct{}
	if watch {
		ch, closeWatcher, err := watchConfig(configFile)
		if err != nil {
			return logger.WithTag("serve", err)
		}
		defer closeWatcher()
		restart = ch
		log.Infof("Watching %s for changes...", configFile)
	}

	for {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		inst, err := startInstance(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		select {
		case <-sigChan:
			inst.stop()
			return nil
		case <-restart:
			log.Infof("Config changed, restarting...")
			inst.stop()
		}
	}
}

// watchConfig signals on the returned channel when path is written,
// debounced by 500ms. The directory is watched so that editors replacing
// the file are still seen.
func watchConfig(path string) (<-chan struct{}, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	restart := make(chan struct{}, 1)
	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					select {
					case restart <- struct{}{}:
					default:
					}
				})
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return restart, func() { _ = watcher.Close() }, nil
}
