package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/aibutler/butler-api/internal/api/metrics"
)

// RateLimit caps requests per caller with store. Authenticated callers are
// keyed by user id, anonymous ones by client IP.
func RateLimit(scope string, store echomiddleware.RateLimiterStore, m *metrics.Metrics) echo.MiddlewareFunc {
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return callerKey(c), nil
		},
		ErrorHandler: identifierError,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			m.RateLimited(scope)
			c.Response().Header().Set("Retry-After", "60")
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

// MemoryRateStore is the single-process limiter used when Redis is not configured.
// It refills perMinute tokens per minute with a burst of perMinute.
func MemoryRateStore(perMinute int) echomiddleware.RateLimiterStore {
	return echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})
}

// identifierError replaces echo's default 403 so an extractor failure is never
// mistaken for a role failure.
func identifierError(_ echo.Context, err error) error {
	return echo.NewHTTPError(http.StatusInternalServerError, "unable to identify caller").SetInternal(err)
}

func callerKey(c echo.Context) string {
	if identity, ok := IdentityFrom(c); ok {
		return "user:" + strconv.FormatInt(identity.ID, 10)
	}
	return "ip:" + c.RealIP()
}
