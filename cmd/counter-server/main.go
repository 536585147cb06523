package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/app"
	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/server"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel = flag.String("log-level", "", "info|warn|error, overrides LOG_LEVEL")
	optEncoding = flag.String("log-encoding", "json", "json|console")
	optStore    = flag.String("store", "", "memory|redis|datastore|postgres, overrides COUNTER_STORE")
)

func init() {
	godotenv.Load()

	flag.Parse()
}

func main() {
	if *optStore != "" {
		os.Setenv("COUNTER_STORE", *optStore)
	}

	cfg, err := config.Load()
	if err != nil {
		// logger is not ready until the config is read
		log.Must(log.NewLogger()).Sugar().With(zap.String("app", myName)).Fatalf("*** config.Load: %v", err)
	}

	lv := cfg.LogLevel
	if *optLogLevel != "" {
		lv = *optLogLevel
	}
	logger = log.Must(log.NewLogger(log.WithLogLevel(lv), log.WithEncoding(*optEncoding))).Sugar().With(zap.String("app", myName))
	defer logger.Sync()

	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger, myName, version)
	if err != nil {
		logger.Fatalf("*** app.New: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Errorf("Close: %v", err)
		}
	}()

	logger.Infof("API endpoint: http://localhost:%d/api/visitor-count", cfg.Port)
	if err := server.New(cfg.Addr(), a.Handler, logger).Run(ctx); err != nil {
		logger.Errorf("Run: %v", err)
	}
}
