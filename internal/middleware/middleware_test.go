package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"groupdesk/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "success"})
}

func TestJSONOnly(t *testing.T) {
	app := fiber.New()
	app.Use(JSONOnly())
	app.All("/api/users", ok)

	tests := []struct {
		name        string
		method      string
		accept      string
		contentType string
		body        string
		want        int
	}{
		{"plain get", http.MethodGet, "", "", "", fiber.StatusOK},
		{"json accept", http.MethodGet, "application/json", "", "", fiber.StatusOK},
		{"wildcard accept", http.MethodGet, "*/*", "", "", fiber.StatusOK},
		{"html only", http.MethodGet, "text/html", "", "", fiber.StatusNotAcceptable},
		{"json body", http.MethodPost, "", "application/json", `{"address":"0x1"}`, fiber.StatusOK},
		{"json body with charset", http.MethodPost, "", "application/json; charset=utf-8", `{}`, fiber.StatusOK},
		{"form body", http.MethodPost, "", "application/x-www-form-urlencoded", "a=b", fiber.StatusUnsupportedMediaType},
		{"empty post", http.MethodPost, "", "", "", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/users", strings.NewReader(tt.body))
			if tt.accept != "" {
				req.Header.Set(fiber.HeaderAccept, tt.accept)
			}
			if tt.contentType != "" {
				req.Header.Set(fiber.HeaderContentType, tt.contentType)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestWriteLimiter(t *testing.T) {
	app := fiber.New()
	app.Use(WriteLimiter(config.SecurityConfig{WriteLimit: 2, WriteWindow: time.Minute}, nil))
	app.All("/api/groups", ok)

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/groups", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, "reads are not limited")
	}

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/groups", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/groups", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestSecurityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders())
	app.Get("/", ok)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "frame-ancestors 'none'")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(Logger(logger))
	app.Get("/ok", ok)
	app.Get("/missing", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "nope")
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=INFO msg=Request method=GET path=/ok status=200")
	assert.Contains(t, out, "level=WARN msg=Request method=GET path=/missing status=404")
	assert.Contains(t, out, "request_id=")
}
