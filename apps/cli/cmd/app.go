package cmd

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/abdul-hamid-achik/postbox/packages/core/config"
	"github.com/abdul-hamid-achik/postbox/packages/core/runner"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/abdul-hamid-achik/postbox/packages/export/metrics"
	"github.com/abdul-hamid-achik/postbox/packages/http"
	"github.com/abdul-hamid-achik/postbox/packages/logger"
)

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// app is the state shared by commands that touch the store.
type app struct {
	cfg   *config.Config
	log   logger.Logger
	store *db.Client
}

// openApp loads the configuration, builds the logger and opens the store.
func openApp() (*app, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, configError(err)
	}
	if noColorFlag {
		cfg.NoColor = config.BoolPtr(true)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, configError(err)
	}

	store, err := db.NewClient(cfg.Database)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	log.Debug("store opened", "database", store.DataSource())
	return &app{cfg: cfg, log: log, store: store}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", "error", err)
	}
	_ = a.log.Sync()
}

// executor builds the outbound executor from the configuration.
func (a *app) executor() *http.Executor {
	client := http.NewClient(
		http.WithTimeout(a.cfg.TimeoutDuration()),
		http.WithFollowRedirects(a.cfg.GetFollowRedirects()),
		http.WithMaxRedirects(a.cfg.MaxRedirects),
		http.WithValidateSSL(a.cfg.GetValidateSSL()),
		http.WithProxy(a.cfg.Proxy),
		http.WithMaxBodySize(a.cfg.MaxBodyBytes),
		http.WithDefaultHeaders(a.cfg.Headers),
	)
	opts := []http.ExecutorOption{http.WithExecutionTimeout(a.cfg.TimeoutDuration())}
	if a.cfg.RateLimit > 0 {
		opts = append(opts, http.WithRateLimit(a.cfg.RateLimit, a.cfg.RateBurst))
	}
	return http.NewExecutor(client, opts...)
}

func (a *app) runner(m metrics.Recorder) *runner.Runner {
	return runner.NewRunner(a.store,
		runner.WithExecutor(a.executor()),
		runner.WithMetrics(m),
		runner.WithLogger(a.log),
	)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
