package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tckz/visitor-counter/internal/counter"
	"go.uber.org/zap"
)

const (
	PathVisitorCount = "/api/visitor-count"
	PathHealth       = "/api/health"
)

var allowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}

type options struct {
	origin        string
	timeout       time.Duration
	name          string
	version       string
	counterAtRoot bool
}

type Option func(o *options)

// WithAllowOrigin sets Access-Control-Allow-Origin. Default is "*".
func WithAllowOrigin(origin string) Option {
	return Option(func(o *options) {
		o.origin = origin
	})
}

// WithTimeout bounds each store call.
func WithTimeout(d time.Duration) Option {
	return Option(func(o *options) {
		o.timeout = d
	})
}

// WithCounterAtRoot serves the counter on "/" as well, for deployments such
// as a Cloud Function whose URL is the counter itself.
func WithCounterAtRoot() Option {
	return Option(func(o *options) {
		o.counterAtRoot = true
	})
}

func WithVersion(name, version string) Option {
	return Option(func(o *options) {
		o.name = name
		o.version = version
	})
}

// Handler serves the visitor counter endpoints for any counter.Counter.
type Handler struct {
	counter counter.Counter
	logger  *zap.SugaredLogger
	opts    options
	mux     *http.ServeMux
}

func NewHandler(c counter.Counter, logger *zap.SugaredLogger, opts ...Option) *Handler {
	o := options{
		origin:  "*",
		timeout: 10 * time.Second,
		name:    "visitor-counter",
		version: "dev",
	}
	for _, e := range opts {
		e(&o)
	}
	h := &Handler{
		counter: c,
		logger:  logger,
		opts:    o,
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc(PathVisitorCount, h.visitorCount)
	h.mux.HandleFunc(PathHealth, h.health)
	if o.counterAtRoot {
		h.mux.HandleFunc("/{$}", h.visitorCount)
	} else {
		h.mux.HandleFunc("/{$}", h.index)
	}
	h.mux.HandleFunc("/", h.notFound)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type countResponse struct {
	Count int64 `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) visitorCount(w http.ResponseWriter, r *http.Request) {
	h.setCommonHeaders(w)

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		h.serveCount(w, r, "Up", h.counter.Up, "Failed to update visitor count")
	case http.MethodGet:
		h.serveCount(w, r, "Get", h.counter.Get, "Failed to read visitor count")
	default:
		w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

func (h *Handler) serveCount(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context) (int64, error), failure string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.timeout)
	defer cancel()

	n, err := fn(ctx)
	if err != nil {
		// the cause stays in the log
		h.logger.With(zap.Error(err), zap.String("requestID", RequestID(r.Context()))).Errorf("%s: %v", op, err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: failure})
		return
	}
	h.writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.setCommonHeaders(w)
	if !lo.Contains([]string{http.MethodGet, http.MethodHead}, r.Method) {
		w.Header().Set("Allow", "GET, HEAD")
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.setCommonHeaders(w)
	h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.setCommonHeaders(w)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    h.opts.name,
		"version": h.opts.version,
		"endpoints": map[string]string{
			"POST " + PathVisitorCount: "Increment and get visitor count",
			"GET " + PathVisitorCount:  "Get current visitor count",
			"GET " + PathHealth:        "Health check",
		},
	})
}

func (h *Handler) setCommonHeaders(w http.ResponseWriter) {
	setCommonHeaders(w, h.opts.origin)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	writeJSON(w, h.logger, code, v)
}

func setCommonHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", origin)
	if origin != "*" {
		w.Header().Set("Vary", "Origin")
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, code int, v interface{}) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("json.Encode: %v", err)
	}
}
