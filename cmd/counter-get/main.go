package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/store"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optStore    = flag.String("store", "", "memory|redis|datastore|postgres, overrides COUNTER_STORE")
	optJSON     = flag.Bool("json", false, "print the record as json")
	optTimeout  = flag.Duration("timeout", 10*time.Second, "timeout of the read")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	if *optStore != "" {
		os.Setenv("COUNTER_STORE", *optStore)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("*** config.Load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *optTimeout)
	defer cancel()

	b, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("*** store.Open: %v", err)
	}
	defer b.Close()

	rec, err := readRecord(ctx, b)
	if err != nil {
		logger.Errorf("Record: %v", err)
		return
	}

	if *optJSON {
		json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
			"id":          rec.ID,
			"count":       rec.Count,
			"lastUpdated": rec.LastUpdated,
		})
		return
	}

	last := "never"
	if !rec.LastUpdated.IsZero() {
		last = fmt.Sprintf("%s (%s)", rec.LastUpdated.Format(time.RFC3339), humanize.Time(rec.LastUpdated))
	}
	fmt.Fprintf(os.Stdout, "store=%s id=%s count=%s lastUpdated=%s\n", b.Kind, rec.ID, humanize.Comma(rec.Count), last)
}

func readRecord(ctx context.Context, b *store.Backend) (counter.Record, error) {
	if r, ok := b.Counter.(counter.Recorder); ok {
		return r.Record(ctx)
	}
	n, err := b.Get(ctx)
	if err != nil {
		return counter.Record{}, err
	}
	return counter.Record{Count: n}, nil
}
