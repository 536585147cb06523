package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/log"
	"go.uber.org/zap"

	visitorcounter "github.com/tckz/visitor-counter"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optPort = flag.String("port", "8080", "listen port, PORT wins when set")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger()).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	port := *optPort
	if v := os.Getenv("PORT"); v != "" {
		port = v
	}
	if os.Getenv("FUNCTION_TARGET") == "" {
		os.Setenv("FUNCTION_TARGET", visitorcounter.FunctionName)
	}

	if err := funcframework.Start(port); err != nil {
		logger.Fatalf("*** funcframework.Start: %v", err)
	}
}
