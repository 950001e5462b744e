package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics("groupdesk_test")

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/metrics", m.Handler())
	app.Get("/api/groups/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/api/missing", func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	for _, path := range []string{"/api/groups/a", "/api/groups/b", "/api/missing"} {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
	}

	m.RecordGateDecision("forbidden")
	m.RecordUserUpsert(context.Background(), true)
	m.RecordGroupCreated(context.Background())
	m.RecordMemberAdded(context.Background(), "admin")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, `groupdesk_test_http_requests_total{method="GET",route="/api/groups/:id",status="204"} 2`)
	assert.Contains(t, out, `groupdesk_test_http_requests_total{method="GET",route="/api/missing",status="404"} 1`)
	assert.Contains(t, out, `groupdesk_test_identity_gate_decisions_total{decision="forbidden"} 1`)
	assert.Contains(t, out, "go_goroutines")
}
