package api

import (
	"net/http"
	"net/http/pprof"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"autobulk/pkg/aggregator"
	"autobulk/pkg/router"
)

// DefaultSubmitTimeout bounds how long an intake request may wait on a
// full queue when no timeout is configured.
const DefaultSubmitTimeout = 5 * time.Second

// Target binds a configured target name to its aggregator and the kind
// used to decode intake payloads.
type Target struct {
	Name       string
	Kind       string
	Aggregator *aggregator.Aggregator
}

// Server serves the intake and admin endpoints over a registry.
type Server struct {
	registry      *aggregator.Registry
	targets       map[string]Target
	submitTimeout time.Duration
	version       string
	started       time.Time
}

type Option func(*Server)

func WithSubmitTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.submitTimeout = d
		}
	}
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

func New(reg *aggregator.Registry, targets []Target, opts ...Option) *Server {
	s := &Server{
		registry:      reg,
		targets:       make(map[string]Target, len(targets)),
		submitTimeout: DefaultSubmitTimeout,
		version:       "dev",
		started:       time.Now(),
	}
	for _, t := range targets {
		s.targets[t.Name] = t
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// targetNames returns configured target names, sorted.
func (s *Server) targetNames() []string {
	names := make([]string, 0, len(s.targets))
	for n := range s.targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// wrapHTTPHandler wraps an http.Handler to work with fasthttp.
func wrapHTTPHandler(h http.Handler) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(h)
}

// RegisterRoutes wires all gateway routes onto the provided router.
func (s *Server) RegisterRoutes(r *router.Router) {
	// intake
	r.POST("/v1/targets/{name}/ops", s.SubmitOps)

	// admin
	r.GET("/admin/health", s.Health)
	r.GET("/admin/stats", s.Stats)
	r.GET("/admin/targets", s.Targets)
	r.POST("/admin/flush", s.Flush)

	// admin debug routes
	r.GET("/admin/debug/prometheus", wrapHTTPHandler(promhttp.Handler()))
	r.GET("/admin/debug/pprof/", wrapHTTPHandler(http.HandlerFunc(pprof.Index)))
	r.GET("/admin/debug/pprof/cmdline", wrapHTTPHandler(http.HandlerFunc(pprof.Cmdline)))
	r.GET("/admin/debug/pprof/profile", wrapHTTPHandler(http.HandlerFunc(pprof.Profile)))
	r.GET("/admin/debug/pprof/symbol", wrapHTTPHandler(http.HandlerFunc(pprof.Symbol)))
	r.GET("/admin/debug/pprof/trace", wrapHTTPHandler(http.HandlerFunc(pprof.Trace)))
}

// Handler builds the full gateway handler. Middleware runs outside the
// request metrics, so rejected requests are counted too.
func (s *Server) Handler(mw ...router.Middleware) fasthttp.RequestHandler {
	r := router.New()
	r.Use(instrument)
	r.Use(mw...)
	s.RegisterRoutes(r)
	return r.Handler()
}
