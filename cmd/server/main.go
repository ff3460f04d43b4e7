package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"

	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	appctx "github.com/bassista/go_refresh/internal/app"
	"github.com/bassista/go_refresh/internal/config"
	"github.com/bassista/go_refresh/internal/dataset"
	"github.com/bassista/go_refresh/internal/logger"
	"github.com/bassista/go_refresh/internal/registry"
)

func main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.WithComponent("main").Error(err)
		os.Exit(1)
	}
}

// bootstrap loads .env and the configuration and wires the application on
// the OS filesystem. Metrics are registered only for the long-running server.
func bootstrap(withMetrics bool) (*appctx.App, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WithComponent("main").Warnf("cannot read .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', keeping '%s': %v", cfg.Misc.LogLevel, logger.Logger.GetLevel(), err)
	}
	logger.WithComponent("main").Debugf("log level set to: %s", logger.Logger.GetLevel())

	fs := afero.NewOsFs()
	reg := registry.New()
	if err := dataset.Register(reg, fs, &http.Client{Timeout: cfg.Refresh.HTTPTimeout}); err != nil {
		return nil, fmt.Errorf("cannot register data types: %w", err)
	}

	var promReg *prometheus.Registry
	if withMetrics {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	reporter := appctx.NewReporter(os.Getenv("HONEYBADGER_API_KEY"), getEnv("GO_ENV", "production"))
	app, err := appctx.New(cfg, reg, fs, promReg, reporter)
	if err != nil {
		return nil, fmt.Errorf("cannot init app: %w", err)
	}
	return app, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	srv := httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
	return srv
}
