package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/aibutler/butler-api/docs"
	"github.com/aibutler/butler-api/internal/api/handler"
	"github.com/aibutler/butler-api/internal/api/metrics"
	"github.com/aibutler/butler-api/internal/api/middleware"
	"github.com/aibutler/butler-api/internal/core/ports"
)

const (
	defaultLoginPerMinute = 5
	defaultAskPerMinute   = 30
)

// Deps holds everything the router wires into handlers and middleware.
type Deps struct {
	Logger        zerolog.Logger
	Auth          ports.AuthService
	Conversations ports.ConversationService
	Verifier      ports.TokenVerifier
	Reporter      ports.ErrorReporter

	// Registry receives the HTTP and domain metrics and backs /metrics.
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Nil limiters fall back to in-memory stores with the default ceilings.
	LoginLimiter echomiddleware.RateLimiterStore
	AskLimiter   echomiddleware.RateLimiterStore

	// Pingers are checked by /health/ready, keyed by dependency name.
	Pingers map[string]handler.Pinger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger, d.Reporter)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	if d.Registry != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Namespace:  "butler",
			Subsystem:  "http",
			Registerer: d.Registry,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/swagger")
			},
		}))
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Registry}))
	}

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Metrics)
	adminHandler := handler.NewAdminHandler(d.Auth, d.Metrics)
	conversationHandler := handler.NewConversationHandler(d.Conversations, d.Metrics)
	webHandler := handler.NewWebHandler(d.Conversations, d.Metrics)
	healthHandler := handler.NewHealthHandler(d.Pingers)

	loginStore, askStore := d.LoginLimiter, d.AskLimiter
	if loginStore == nil {
		loginStore = middleware.MemoryRateStore(defaultLoginPerMinute)
	}
	if askStore == nil {
		askStore = middleware.MemoryRateStore(defaultAskPerMinute)
	}

	requireAuth := middleware.Auth(d.Verifier)
	adminOnly := middleware.AdminOnly()
	loginLimit := middleware.RateLimit("login", loginStore, d.Metrics)
	askLimit := middleware.RateLimit("ask", askStore, d.Metrics)

	// --- Health checks and docs (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	e.POST("/register", authHandler.Register)
	e.POST("/login", authHandler.Login, loginLimit)
	e.GET("/profile", authHandler.Profile, requireAuth)

	// --- Questions ---
	// The auth gate runs first so the ask limiter keys on the user instead of the address.
	e.POST("/ask", conversationHandler.Ask, requireAuth, askLimit)
	e.GET("/ask", conversationHandler.AskAnonymous, askLimit)
	e.GET("/web", webHandler.Form)
	e.POST("/ask-web", webHandler.Ask, askLimit)

	conversations := e.Group("/conversations", requireAuth)
	conversations.GET("", conversationHandler.List)
	conversations.GET("/:id", conversationHandler.Get)
	conversations.DELETE("/:id", conversationHandler.Delete, adminOnly)

	// --- Admin ---
	admin := e.Group("/admin", requireAuth, adminOnly)
	admin.POST("/users", adminHandler.CreateUser)
	admin.GET("/users", adminHandler.ListUsers)
	admin.PATCH("/users/:id/role", adminHandler.UpdateRole)

	return e
}

// requestLogger writes one access log entry per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= 500 {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
