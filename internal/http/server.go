package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	applog "networth/internal/log"
	"networth/internal/middleware/ratelimit"
	"networth/internal/middleware/security"
	"networth/internal/middleware/trace"
	"networth/internal/sections"
	"networth/internal/session"
	appweb "networth/web"
)

// Options configures a Server.
type Options struct {
	Addr               string
	Currency           string
	RateLimitPerMinute int
	Logger             *applog.Logger
}

// Server serves the JSON API under /networth and the htmx UI.
type Server struct {
	http.Server
	templates *template.Template
	store     sections.Store
	session   *session.Session
	currency  string

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *applog.Logger
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates. The JSON API talks to
// store directly; the UI edits through sess, which must wrap the same store.
func NewServer(opts Options, store sections.Store, sess *session.Session) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = "USD"
	}
	if sess == nil {
		sess = session.New(store, logger)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16, // 64KB
		},
		store:    store,
		session:  sess,
		currency: currency,
		detector: security.NewDetector(logger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		logger:  logger.WithComponent(applog.ComponentHTTP),
		started: time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err, applog.FieldComponent, applog.ComponentTemplate)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	s.registerRoutes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(h)
	h = headers.Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	api := func(h http.HandlerFunc) http.Handler { return security.NoStoreMiddleware(h) }
	mux.Handle("GET /networth/GetData", api(s.handleGetData))
	mux.Handle("GET /networth/GetSection", api(s.handleGetSection))
	mux.Handle("POST /networth/SaveSection", api(s.handleSaveSection))
	mux.Handle("POST /networth/SaveData", api(s.handleSaveData))
	mux.Handle("GET /networth/NetWorth", api(s.handleNetWorth))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/sections/{si}", s.handleSectionPartial)
	mux.HandleFunc("POST /ui/sections/{si}/groups/{gi}/categories/{ci}/value", s.handleSetValue)
	mux.HandleFunc("POST /ui/sections/{si}/groups", s.handleAddGroup)
	mux.HandleFunc("POST /ui/sections/{si}/groups/{gi}/categories", s.handleAddCategory)
	mux.HandleFunc("DELETE /ui/sections/{si}/groups/{gi}", s.handleDeleteGroup)
	mux.HandleFunc("DELETE /ui/sections/{si}/groups/{gi}/categories/{ci}", s.handleDeleteCategory)
	mux.HandleFunc("POST /ui/sections/{si}/edit", s.handleBeginEdit)
	mux.HandleFunc("POST /ui/sections/{si}/cancel", s.handleCancelEdit)
	mux.HandleFunc("POST /ui/sections/{si}/submit", s.handleSubmitEdit)
	mux.HandleFunc("POST /ui/sections/{si}/save", s.handleSave)
	mux.HandleFunc("POST /ui/sections/{si}/reset", s.handleReset)
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		NewHTMXResponse().
			Status(http.StatusTooManyRequests).
			TriggerErrorNotification("Too many changes, try again in a minute").
			Write(w)
		return
	}
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
