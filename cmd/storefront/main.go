package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storefront.kajin.shop/internal/app"
	"storefront.kajin.shop/internal/appconf"
	"storefront.kajin.shop/internal/config"
	"storefront.kajin.shop/internal/jobs"
	"storefront.kajin.shop/internal/logging"
	"storefront.kajin.shop/internal/pay"
	"storefront.kajin.shop/internal/restapi"
	"storefront.kajin.shop/shopdb"
)

const (
	defaultWorkers  = 4
	shutdownTimeout = 10 * time.Second
)

const usage = `usage: storefront <mode>

modes:
  api        run the HTTP API server
  worker     run the background job worker pool
  scheduler  run the periodic job scheduler
  shell      start an interactive shell
`

type modeFunc func(cfg config.Config, env appconf.Environment, logger *slog.Logger)

var modes = map[string]modeFunc{
	"api":       runAPI,
	"worker":    runWorker,
	"scheduler": runScheduler,
	"shell":     runShell,
}

// dispatch resolves the mode selector from args. A missing or unrecognized
// selector prints usage and reports exit code 1.
func dispatch(args []string, stdout io.Writer) (modeFunc, int) {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return nil, 1
	}
	run, ok := modes[args[1]]
	if !ok {
		fmt.Fprint(stdout, usage)
		return nil, 1
	}
	return run, 0
}

func main() {
	run, code := dispatch(os.Args, os.Stdout)
	if run == nil {
		os.Exit(code)
	}

	// A missing .env file is the normal case in containers; values come from
	// the environment there.
	_ = godotenv.Load()

	cfg, env, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger(os.Stdout, logLevel(cfg))
	run(cfg, env, logger)
}

func loadConfig() (config.Config, appconf.Environment, error) {
	envName := os.Getenv("APP_ENV")
	env := appconf.EnvFlagToEnvironment(envName)

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.Resolve(".", envName)
	}
	if path == "" {
		return config.Default(), env, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, env, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, env, nil
}

// logLevel prefers the LOG_LEVEL environment variable over the config file.
func logLevel(cfg config.Config) slog.Level {
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		return logging.ParseLevel(s)
	}
	return logging.ParseLevel(cfg.Log.Level)
}

func workerCount() int {
	s := os.Getenv("WORKERS")
	if s == "" {
		return defaultWorkers
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return defaultWorkers
	}
	return n
}

func openStore(cfg config.Config, env appconf.Environment, logger *slog.Logger) *shopdb.Client {
	store, err := shopdb.NewClient(shopdb.NewConfig(cfg.Database.Path, env))
	if err != nil {
		logging.LogError(logger, "opening database", err, slog.String("path", cfg.Database.Path))
		os.Exit(1)
	}
	return store
}

func newApplication(cfg config.Config, env appconf.Environment, logger *slog.Logger) *app.Application {
	return &app.Application{
		Config: cfg,
		Env:    env,
		Logger: logger,
		Store:  openStore(cfg, env, logger),
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runAPI(cfg config.Config, env appconf.Environment, logger *slog.Logger) {
	application := newApplication(cfg, env, logger)
	defer logging.SafeCloseWithLogging(application.Store, logger, "closing database")

	var payments restapi.PaymentProvider
	client, err := pay.NewClient(cfg.Pay, logger)
	if err != nil {
		logger.Warn("payment client unavailable, payment endpoints disabled", "error", err)
	} else {
		payments = client
	}

	// No code2session client is configured yet; mini-program login answers
	// with a business error until one is plugged in.
	api := restapi.NewRestAPI(application, payments, nil)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", env.String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.LogError(logger, "server failed", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.LogError(logger, "server shutdown", err)
		}
	}
}

func runWorker(cfg config.Config, env appconf.Environment, logger *slog.Logger) {
	application := newApplication(cfg, env, logger)
	defer logging.SafeCloseWithLogging(application.Store, logger, "closing database")

	worker := jobs.NewWorker(application.Store, logger, workerCount())
	closer := jobs.NewOrderCloser(application.Store, logger)
	worker.Register(jobs.KindCloseExpiredOrder, closer.CloseExpired)

	ctx, stop := signalContext()
	defer stop()

	worker.Run(ctx)
}

func runScheduler(cfg config.Config, env appconf.Environment, logger *slog.Logger) {
	application := newApplication(cfg, env, logger)
	defer logging.SafeCloseWithLogging(application.Store, logger, "closing database")

	scheduler := jobs.NewScheduler(application.Store, logger)

	ctx, stop := signalContext()
	defer stop()

	scheduler.Run(ctx)
}

// runShell replaces the process with an interactive shell, matching the
// container debugging entrypoint.
func runShell(_ config.Config, _ appconf.Environment, logger *slog.Logger) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	path, err := exec.LookPath(shell)
	if err != nil {
		logging.LogError(logger, "locating shell", err, slog.String("shell", shell))
		os.Exit(1)
	}

	args := append([]string{path}, os.Args[2:]...)
	if err := syscall.Exec(path, args, os.Environ()); err != nil {
		logging.LogError(logger, "executing shell", err, slog.String("shell", path))
		os.Exit(1)
	}
}
