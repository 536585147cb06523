package app

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/pubsub"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tckz/visitor-counter/internal/api"
	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/metrics"
	"github.com/tckz/visitor-counter/internal/notify"
	"github.com/tckz/visitor-counter/internal/store"
	"go.uber.org/zap"
)

const PathMetrics = "/metrics"

// App wires a configured store into the HTTP handler.
type App struct {
	Counter  counter.Counter
	Handler  http.Handler
	Registry *prometheus.Registry

	backend  *store.Backend
	notifier *notify.PubSubNotifier
	psClient *pubsub.Client
}

// New opens the configured store. apiOpts are applied after the options
// derived from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, name, version string, apiOpts ...api.Option) (*App, error) {
	b, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}
	a := &App{backend: b}

	var c counter.Counter = b
	if cfg.PubSub.Topic != "" {
		cl, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("pubsub.NewClient: %w", err)
		}
		a.psClient = cl
		a.notifier = notify.NewPubSubNotifier(cl.Topic(cfg.PubSub.Topic))
		c = notify.Wrap(c, cfg.CounterID, a.notifier, logger)
	}

	if cfg.MetricsEnabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		c = metrics.New(a.Registry).Instrument(c)
	}
	a.Counter = c

	opts := append([]api.Option{
		api.WithAllowOrigin(cfg.CORSOrigin),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithVersion(name, version),
	}, apiOpts...)
	h := api.NewHandler(c, logger, opts...)

	mux := http.NewServeMux()
	mux.Handle("/", h)
	if a.Registry != nil {
		mux.Handle(PathMetrics, promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	}

	a.Handler = api.Chain(mux,
		api.WithRequestID,
		api.AccessLog(logger),
		api.Recover(logger, cfg.CORSOrigin),
	)

	logger.Infof("store=%s, counterID=%s, origin=%s, pubsub=%t, metrics=%t",
		b.Kind, cfg.CounterID, cfg.CORSOrigin, a.notifier != nil, a.Registry != nil)
	return a, nil
}

func (a *App) Close() error {
	var result *multierror.Error
	if a.notifier != nil {
		a.notifier.Stop()
	}
	if a.psClient != nil {
		if err := a.psClient.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("pubsub.Close: %w", err))
		}
	}
	if err := a.backend.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("backend.Close: %w", err))
	}
	return result.ErrorOrNil()
}
