package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pageserver-go/internal/infra/buildinfo"
	"github.com/yndnr/pageserver-go/internal/infra/confloader"
	"github.com/yndnr/pageserver-go/internal/infra/shutdown"
	"github.com/yndnr/pageserver-go/internal/registry"
	"github.com/yndnr/pageserver-go/internal/server/config"
	"github.com/yndnr/pageserver-go/internal/server/httpserver"
	"github.com/yndnr/pageserver-go/internal/server/pageservice"
	"github.com/yndnr/pageserver-go/internal/telemetry/logger"
	"github.com/yndnr/pageserver-go/internal/telemetry/metric"
)

// shutdownTimeout bounds the whole shutdown sequence.
const shutdownTimeout = 30 * time.Second

// RunCommand returns the run command. It is also the default action.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the page server",
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfgPath := c.String("config")
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting pageserver",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", cfgPath,
		"repository_format", cfg.Repository.Format)

	return runServer(c.Context, cfgPath, cfg, log)
}

// runServer initializes the repository, then serves the admin surface
// until ctx is cancelled or a termination signal arrives.
func runServer(ctx context.Context, cfgPath string, cfg *config.ServerConfig, log logger.Logger) error {
	slogger := log.Slog()
	metrics := metric.NewRegistry()

	reg := registry.New(registry.WithLogger(slogger), registry.WithMetrics(metrics))
	metrics.MustRegister(metric.NewRepositoryCollector(reg.State))

	// The repository is ready before anything can call Get.
	if err := reg.Init(ctx, cfg); err != nil {
		return fmt.Errorf("initialize repository: %w", err)
	}

	sh := shutdown.NewHandler(shutdownTimeout, slogger)
	sh.OnShutdownFunc("repository", reg.Close)

	svc := pageservice.New(reg, metrics, slogger)
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Ready:     reg,
		Status:    svc,
		Metrics:   metrics,
		Logger:    slogger,
		RateLimit: cfg.Server.HTTP.RateLimit,
		RateBurst: cfg.Server.HTTP.RateBurst,
	})

	opts := []httpserver.Option{httpserver.WithLogger(slogger)}
	if cfg.Server.HTTP.TLSCertFile != "" {
		opts = append(opts, httpserver.WithTLS(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile))
	}
	srv := httpserver.New(cfg.Server.HTTP.Addr, router, opts...)

	ln, err := srv.Listen()
	if err != nil {
		return errors.Join(fmt.Errorf("listen on %s: %w", cfg.Server.HTTP.Addr, err), sh.Shutdown())
	}
	sh.OnShutdown("http server", srv.Shutdown)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil {
			log.Error("admin http server failed", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	if cfgPath != "" {
		w, err := confloader.NewWatcher(cfgPath, confloader.WithWatcherLogger(slogger))
		if err != nil {
			log.Warn("configuration watcher disabled", "error", err)
		} else {
			w.OnChange(func(path string) { reloadConfig(path, cfg, log) })
			sh.OnShutdownFunc("config watcher", w.Stop)
			go w.Run(waitCtx)
		}
	}

	log.Info("pageserver started", "addr", ln.Addr().String())

	err = sh.Wait(waitCtx)
	select {
	case serr := <-serveErr:
		return errors.Join(fmt.Errorf("admin http server: %w", serr), err)
	default:
	}
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("pageserver stopped")
	return nil
}

// reloadConfig applies the runtime-adjustable settings of a changed
// configuration file. Only log.level is applied; every other setting is
// fixed for the life of the process.
func reloadConfig(path string, current *config.ServerConfig, log logger.Logger) {
	next, err := loadConfig(path)
	if err != nil {
		log.Warn("ignoring configuration change", "error", err)
		return
	}

	if level := logger.GetLevel(); next.Log.Level != level {
		logger.SetLevel(next.Log.Level)
		log.Info("log level changed", "from", level, "to", next.Log.Level)
	}

	if !reflect.DeepEqual(next.Repository, current.Repository) ||
		!reflect.DeepEqual(next.ObjectStore, current.ObjectStore) ||
		!reflect.DeepEqual(next.WALRedo, current.WALRedo) ||
		!reflect.DeepEqual(next.Server, current.Server) {
		log.Warn("configuration change requires a restart and was not applied")
	}
}
