// Package server реализует HTTP API ассистента Pronote
package server

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ultrahd-dev/pronote-assistant/internal/ai"
	"github.com/Ultrahd-dev/pronote-assistant/internal/auth"
	"github.com/Ultrahd-dev/pronote-assistant/internal/session"
)

// Version версия API, возвращаемая корневым маршрутом
const Version = "1.0.0"

// Лимиты запросов в минуту с одного IP
const (
	limitRoot   = 100
	limitHealth = 200
	limitENTs   = 100
	limitLogin  = 10
	limitLogout = 50
	limitData   = 30
	limitChat   = 20
)

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 1 << 20

// Options настройки HTTP сервера
type Options struct {
	AllowedOrigins []string
	RateLimit      bool
	TrustedProxies []string // IP или CIDR обратных прокси
	DefaultModel   string
	AITimeout      time.Duration
}

// Server HTTP сервер API
type Server struct {
	auth       *auth.Service
	middleware *auth.Middleware
	sessions   *session.Manager
	ai         ai.Provider
	opts       Options
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *metrics
	proxies    []netip.Prefix
	now        func() time.Time
}

// New создает сервер. Метрики регистрируются в собственном реестре,
// чтобы несколько серверов (например, в тестах) не конфликтовали.
func New(authService *auth.Service, sessions *session.Manager, provider ai.Provider, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AITimeout == 0 {
		opts.AITimeout = 30 * time.Second
	}
	registry := prometheus.NewRegistry()
	proxies, err := parseProxies(opts.TrustedProxies)
	if err != nil {
		logger.Warn("invalid trusted proxy ignored", "error", err)
	}
	return &Server{
		auth:       authService,
		middleware: auth.NewMiddleware(authService, logger),
		sessions:   sessions,
		ai:         provider,
		opts:       opts,
		logger:     logger,
		registry:   registry,
		metrics:    newMetrics(registry),
		proxies:    proxies,
		now:        time.Now,
	}
}

// Router собирает маршруты API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.With(s.limit(limitRoot)).Get("/", s.handleRoot)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.With(s.limit(limitHealth)).Get("/health", s.handleHealth)
		r.With(s.limit(limitENTs)).Get("/ents", s.handleProviders)

		r.Route("/auth", func(r chi.Router) {
			r.With(s.limit(limitLogin)).Post("/login/direct", s.handleLoginDirect)
			r.With(s.limit(limitLogin)).Post("/login/cas", s.handleLoginCAS)
			r.With(s.limit(limitLogout), s.middleware.Authenticate).Post("/logout", s.handleLogout)
		})

		r.Route("/pronote", func(r chi.Router) {
			r.Use(s.limit(limitData), s.middleware.Authenticate)
			r.Post("/homework", s.handleHomework)
			r.Post("/timetable", s.handleTimetable)
			r.Post("/grades", s.handleGrades)
		})

		r.With(s.limit(limitChat), s.middleware.Authenticate).Post("/ai/chat", s.handleChat)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Ressource introuvable")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Méthode non autorisée")
	})

	return r
}

// instrument логирует запросы и собирает метрики по шаблону маршрута
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.observeRequest(route, r.Method, status, elapsed)

		s.logger.Info("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
