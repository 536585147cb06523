// Package visitorcounter is the Cloud Functions entry point of the visitor
// counter. Configuration is read once, when the instance starts.
package visitorcounter

import (
	"context"
	"net/http"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/tckz/visitor-counter/internal/api"
	"github.com/tckz/visitor-counter/internal/app"
	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/log"
	"go.uber.org/zap"
)

const FunctionName = "VisitorCounter"

var version string

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Must(log.NewLogger()).Sugar().With(zap.String("app", FunctionName)).Fatalf("*** config.Load: %v", err)
	}
	logger := log.Must(log.NewLogger(log.WithLogLevel(cfg.LogLevel))).Sugar().With(zap.String("app", FunctionName))
	logger.Infof("ver=%s, K_REVISION=%s", version, os.Getenv("K_REVISION"))

	// the instance keeps its clients until it is torn down
	a, err := app.New(context.Background(), cfg, logger, FunctionName, version, api.WithCounterAtRoot())
	if err != nil {
		logger.Fatalf("*** app.New: %v", err)
	}

	functions.HTTP(FunctionName, func(w http.ResponseWriter, r *http.Request) {
		a.Handler.ServeHTTP(w, r)
	})
}
