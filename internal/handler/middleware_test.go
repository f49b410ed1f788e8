package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eshelf/loan-portal/pkg/auth"
)

func newAdminEcho(t *testing.T) (*echo.Echo, *auth.Manager) {
	t.Helper()
	tokens := auth.NewManager("test-secret")
	h := New(nil, nil, nil, tokens, zap.NewExample())

	e := echo.New()
	e.GET("/api/loan-requests", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}, h.adminAPIAuth)
	e.GET("/dashboard", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}, h.adminPageAuth)
	return e, tokens
}

func TestAdminAPIAuth(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		e, tokens := newAdminEcho(t)
		token, _, err := tokens.MintAdminToken("admin", time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/loan-requests", http.NoBody)
		r.AddCookie(&http.Cookie{Name: adminSessionCookie, Value: token})
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("err. no cookie", func(t *testing.T) {
		t.Parallel()
		e, _ := newAdminEcho(t)

		r := httptest.NewRequest(http.MethodGet, "/api/loan-requests", http.NoBody)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("err. expired session clears cookie", func(t *testing.T) {
		t.Parallel()
		e, tokens := newAdminEcho(t)
		token, _, err := tokens.MintAdminToken("admin", -time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/loan-requests", http.NoBody)
		r.AddCookie(&http.Cookie{Name: adminSessionCookie, Value: token})
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, adminSessionCookie, cookies[0].Name)
		require.Empty(t, cookies[0].Value)
	})

	t.Run("err. read token is not an admin session", func(t *testing.T) {
		t.Parallel()
		e, tokens := newAdminEcho(t)
		token, err := tokens.MintReadToken(7, 3, "aibek@example.com", time.Now().Add(time.Hour))
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/loan-requests", http.NoBody)
		r.AddCookie(&http.Cookie{Name: adminSessionCookie, Value: token})
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAdminPageAuth_RedirectsToLogin(t *testing.T) {
	t.Parallel()
	e, _ := newAdminEcho(t)

	r := httptest.NewRequest(http.MethodGet, "/dashboard", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login", w.Header().Get(echo.HeaderLocation))
}

func TestRequestLoggerConfig_UsesProvidedLogger(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := requestLoggerConfig(zap.New(core))

	require.NoError(t, cfg.LogValuesFunc(nil, middleware.RequestLoggerValues{
		URI:    "/api/books",
		Status: http.StatusOK,
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, "/api/books", entries[0].ContextMap()["URI"])
}

func TestRequestLoggerConfig_ErrorLevel(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := requestLoggerConfig(zap.New(core))

	require.NoError(t, cfg.LogValuesFunc(nil, middleware.RequestLoggerValues{
		URI:    "/api/books",
		Status: http.StatusInternalServerError,
		Error:  errors.New("boom"),
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}
