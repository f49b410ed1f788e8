package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

const (
	adminSessionCookie = "admin_session"
	readSessionCookie  = "read_session"
)

// adminAPIAuth guards the admin API routes. A missing or invalid session
// cookie is cleared and rejected with 401.
func (h *Handler) adminAPIAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := h.verifyAdminCookie(c); err != nil {
			clearCookie(c, adminSessionCookie)
			return echo.NewHTTPError(http.StatusUnauthorized, "admin session is invalid")
		}
		return next(c)
	}
}

// adminPageAuth guards admin pages, redirecting to the login surface instead
// of answering JSON.
func (h *Handler) adminPageAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := h.verifyAdminCookie(c); err != nil {
			clearCookie(c, adminSessionCookie)
			return c.Redirect(http.StatusFound, "/login")
		}
		return next(c)
	}
}

func (h *Handler) verifyAdminCookie(c echo.Context) error {
	cookie, err := c.Cookie(adminSessionCookie)
	if err != nil {
		return err
	}
	if _, err := h.tokens.ParseAdminToken(cookie.Value); err != nil {
		return err
	}
	return nil
}

func clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func newRateLimiterMW(rps rate.Limit) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rps))
}

func requestLoggerConfig(log *zap.Logger) middleware.RequestLoggerConfig {
	c := middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
	return c
}
