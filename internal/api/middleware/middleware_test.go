package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"cvBuilder/internal/tasks"
)

func TestCorrelationIDPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	router := gin.New()
	router.Use(CorrelationIDMiddleware(), SlogLoggerMiddleware(logger))

	var fromCtx, fromGin string
	router.GET("/ping", func(c *gin.Context) {
		fromGin = GetCorrelationID(c)
		fromCtx = tasks.CorrelationID(c.Request.Context())
		LoggerFromContext(c).Info("handled")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") != "abc-123" {
		t.Fatalf("response header = %q", w.Header().Get("X-Correlation-ID"))
	}
	if fromGin != "abc-123" || fromCtx != "abc-123" {
		t.Fatalf("correlation id gin=%q ctx=%q", fromGin, fromCtx)
	}
	if !strings.Contains(buf.String(), "correlation_id=abc-123") {
		t.Fatalf("request log missing correlation id:\n%s", buf.String())
	}
}

func TestCorrelationIDGenerated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationIDMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if len(w.Header().Get("X-Correlation-ID")) != 36 {
		t.Fatalf("expected generated uuid, got %q", w.Header().Get("X-Correlation-ID"))
	}
}

func TestCorrelationIDRejectsUnsafeHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationIDMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, raw := range []string{"has space", "line\tbreak", strings.Repeat("x", maxCorrelationIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(CorrelationIDHeader, raw)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if got := w.Header().Get(CorrelationIDHeader); got == raw || len(got) != 36 {
			t.Fatalf("header %q: response id = %q", raw, got)
		}
	}
}
