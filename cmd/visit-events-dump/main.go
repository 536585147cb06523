package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"cloud.google.com/go/pubsub"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/notify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optWorkers      = flag.Uint64("workers", 4, "Number of workers")
	optLogLevel     = flag.String("log-level", "info", "info|warn|error")
	optSubscription = flag.String("subscription", "", "subscription name")
	optOut          = flag.String("out", "stdout", "path/to/events.jsonl or 'stdout'")
)

type dumper struct {
	mu      sync.Mutex
	enc     *json.Encoder
	highest int64
	total   int64
}

// Write appends one event. Pub/Sub may redeliver, so the same count can show up twice.
func (d *dumper) Write(id string, ev notify.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.total++
	if ev.Count > d.highest {
		d.highest = ev.Count
	}
	return d.enc.Encode(map[string]interface{}{
		"id":         id,
		"counter_id": ev.CounterID,
		"count":      ev.Count,
		"at":         ev.At,
	})
}

func openOut(out string) (io.WriteCloser, error) {
	if out == "stdout" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(out), os.ModePerm); err != nil {
		return nil, err
	}
	return os.Create(out)
}

func main() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if *optSubscription == "" {
		logger.Fatalf("*** --subscription must be specified.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pjID := os.Getenv("PROJECT_ID")

	cl, err := pubsub.NewClient(ctx, pjID)
	if err != nil {
		logger.Fatalf("*** pubsub.NewClient: %v", err)
	}
	defer cl.Close()

	fp, err := openOut(*optOut)
	if err != nil {
		logger.Fatalf("*** openOut: %v", err)
	}
	defer fp.Close()
	d := &dumper{enc: json.NewEncoder(fp)}

	eg, ctx := errgroup.WithContext(ctx)
	for i := uint64(0); i < *optWorkers; i++ {
		eg.Go(func() error {
			subs := cl.Subscription(*optSubscription)
			return subs.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				var ev notify.Event
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					logger.Warnf("msgID=%s is not a visit event: %v", msg.ID, err)
					msg.Ack()
					return
				}
				if err := d.Write(msg.ID, ev); err != nil {
					logger.Errorf("Write: %v", err)
					msg.Nack()
					return
				}
				msg.Ack()
			})
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	s := <-sig
	logger.Infof("Received signal: %v", s)
	cancel()

	logger.Infof("Waiting goroutines exit")
	if err := eg.Wait(); err != nil {
		logger.Errorf("Wait: %v", err)
	}
	logger.Infof("events=%s, highest=%s", humanize.Comma(d.total), humanize.Comma(d.highest))
}
