package identity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "gate-secret"
	testCookie  = "groupdesk_session"
	testAddress = "0xabcdef0123456789abcdef0123456789abcdef01"
)

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return s.revoked[tokenID], s.err
}

type stubGroups struct {
	groups map[string][]string
	err    error
}

func (s stubGroups) GroupNamesForUser(_ context.Context, address string) ([]string, error) {
	return s.groups[address], s.err
}

type countingRecorder struct {
	decisions []string
}

func (r *countingRecorder) RecordGateDecision(decision string) {
	r.decisions = append(r.decisions, decision)
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) CheckPermission(ctx context.Context, user, relation, object string) (bool, error) {
	args := m.Called(ctx, user, relation, object)
	return args.Bool(0), args.Error(1)
}

func newGateApp(resolver Resolver, authorizer Authorizer, cfg GateConfig) *fiber.App {
	app := fiber.New()
	handler := func(c *fiber.Ctx) error {
		id, ok := FromCtx(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.JSON(id)
	}
	app.Get("/api/protected", Protect(resolver, authorizer, cfg), handler)
	app.Get("/admin/stats", Protect(resolver, authorizer, cfg), handler)
	return app
}

func issue(t *testing.T, groups ...string) (string, *Claims) {
	t.Helper()
	token, claims, err := NewTokenManager(testSecret, time.Hour).Issue(testAddress, groups)
	require.NoError(t, err)
	return token, claims
}

func bearer(req *http.Request, token string) *http.Request {
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return req
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var payload struct {
		Error struct {
			Code   string `json:"code"`
			Status int    `json:"status"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, resp.StatusCode, payload.Error.Status)
	return payload.Error.Code
}

func TestProtect_APIMode(t *testing.T) {
	resolver := NewTokenResolver(NewTokenManager(testSecret, time.Hour), testCookie, nil, nil)
	memberToken, _ := issue(t, "member")
	adminToken, _ := issue(t, "admin", "member")

	tests := []struct {
		name       string
		required   []string
		token      string
		wantStatus int
		wantCode   string
	}{
		{"member denied admin route", []string{"admin"}, memberToken, fiber.StatusForbidden, "PERMISSION_DENIED"},
		{"intersecting groups allowed", []string{"admin", "ops"}, adminToken, fiber.StatusOK, ""},
		{"no requirement allows any identity", nil, memberToken, fiber.StatusOK, ""},
		{"missing token", []string{"admin"}, "", fiber.StatusUnauthorized, "UNAUTHENTICATED"},
		{"invalid token", nil, "garbage", fiber.StatusUnauthorized, "UNAUTHENTICATED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newGateApp(resolver, GroupAuthorizer{}, GateConfig{RequiredGroups: tt.required, Mode: ModeAPI})

			req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
			if tt.token != "" {
				bearer(req, tt.token)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, resp))
			}
		})
	}
}

func TestProtect_AttachesIdentity(t *testing.T) {
	resolver := NewTokenResolver(NewTokenManager(testSecret, time.Hour), testCookie, nil, nil)
	app := newGateApp(resolver, nil, GateConfig{RequiredGroups: []string{"member"}})
	token, _ := issue(t, "member")

	resp, err := app.Test(bearer(httptest.NewRequest(http.MethodGet, "/api/protected", nil), token))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var id Identity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&id))
	assert.Equal(t, testAddress, id.Address)
	assert.Equal(t, []string{"member"}, id.Groups)
}

func TestProtect_PageMode(t *testing.T) {
	resolver := NewTokenResolver(NewTokenManager(testSecret, time.Hour), testCookie, nil, nil)
	app := newGateApp(resolver, GroupAuthorizer{}, GateConfig{
		RequiredGroups: []string{"admin"},
		Mode:           ModePage,
		LoginPath:      "/login",
	})

	t.Run("unauthenticated redirects with next", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/stats?range=7d", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login?next=%2Fadmin%2Fstats%3Frange%3D7d", resp.Header.Get(fiber.HeaderLocation))
	})

	t.Run("forbidden redirects with error", func(t *testing.T) {
		token, _ := issue(t, "member")
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login?error=forbidden", resp.Header.Get(fiber.HeaderLocation))
	})

	t.Run("cookie identity is allowed", func(t *testing.T) {
		token, _ := issue(t, "admin")
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestProtect_RevokedToken(t *testing.T) {
	token, claims := issue(t, "admin")
	resolver := NewTokenResolver(
		NewTokenManager(testSecret, time.Hour),
		testCookie,
		stubRevocations{revoked: map[string]bool{claims.ID: true}},
		nil,
	)
	app := newGateApp(resolver, nil, GateConfig{})

	resp, err := app.Test(bearer(httptest.NewRequest(http.MethodGet, "/api/protected", nil), token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProtect_StoredGroupMembership(t *testing.T) {
	tests := []struct {
		name     string
		stored   []string
		required string
		want     int
	}{
		{name: "stored group grants access", stored: []string{"ops"}, required: "ops", want: fiber.StatusOK},
		{name: "stored admin group is ignored", stored: []string{"admin"}, required: AdminGroup, want: fiber.StatusForbidden},
		{name: "stored admin group ignores case", stored: []string{"Admin", "ops"}, required: AdminGroup, want: fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _ := issue(t)
			resolver := NewTokenResolver(
				NewTokenManager(testSecret, time.Hour),
				testCookie,
				nil,
				stubGroups{groups: map[string][]string{testAddress: tt.stored}},
			)
			app := newGateApp(resolver, nil, GateConfig{RequiredGroups: []string{tt.required}})

			resp, err := app.Test(bearer(httptest.NewRequest(http.MethodGet, "/api/protected", nil), token))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	t.Run("token admin group still counts", func(t *testing.T) {
		token, _ := issue(t, AdminGroup)
		resolver := NewTokenResolver(
			NewTokenManager(testSecret, time.Hour),
			testCookie,
			nil,
			stubGroups{groups: map[string][]string{testAddress: {"ops"}}},
		)
		app := newGateApp(resolver, nil, GateConfig{RequiredGroups: []string{AdminGroup}})

		resp, err := app.Test(bearer(httptest.NewRequest(http.MethodGet, "/api/protected", nil), token))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestProtect_ResolverFailureIsInternal(t *testing.T) {
	token, _ := issue(t)
	resolver := NewTokenResolver(
		NewTokenManager(testSecret, time.Hour),
		testCookie,
		stubRevocations{err: errors.New("redis unavailable")},
		nil,
	)
	app := newGateApp(resolver, nil, GateConfig{})

	resp, err := app.Test(bearer(httptest.NewRequest(http.MethodGet, "/api/protected", nil), token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestProtect_RecordsDecisions(t *testing.T) {
	recorder := &countingRecorder{}
	resolver := NewTokenResolver(NewTokenManager(testSecret, time.Hour), testCookie, nil, nil)
	app := newGateApp(resolver, nil, GateConfig{RequiredGroups: []string{"admin"}, Recorder: recorder})

	adminToken, _ := issue(t, "admin")
	memberToken, _ := issue(t, "member")

	for _, token := range []string{adminToken, memberToken, ""} {
		req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
		if token != "" {
			bearer(req, token)
		}
		_, err := app.Test(req)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{DecisionAllowed, DecisionForbidden, DecisionUnauthenticated}, recorder.decisions)
}

func TestFGAAuthorizer(t *testing.T) {
	ctx := context.Background()

	t.Run("local groups short-circuit", func(t *testing.T) {
		checker := &mockChecker{}
		a := NewFGAAuthorizer(checker)

		ok, err := a.Authorize(ctx, Identity{Address: testAddress, Groups: []string{"admin"}}, []string{"admin"})
		require.NoError(t, err)
		assert.True(t, ok)
		checker.AssertNotCalled(t, "CheckPermission", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("membership from OpenFGA", func(t *testing.T) {
		checker := &mockChecker{}
		checker.On("CheckPermission", mock.Anything, "user:"+testAddress, "member", "group:ops").Return(false, nil)
		checker.On("CheckPermission", mock.Anything, "user:"+testAddress, "member", "group:admin").Return(true, nil)
		a := NewFGAAuthorizer(checker)

		ok, err := a.Authorize(ctx, Identity{Address: testAddress}, []string{"ops", "admin"})
		require.NoError(t, err)
		assert.True(t, ok)
		checker.AssertExpectations(t)
	})

	t.Run("check failure", func(t *testing.T) {
		checker := &mockChecker{}
		checker.On("CheckPermission", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("unavailable"))
		a := NewFGAAuthorizer(checker)

		ok, err := a.Authorize(ctx, Identity{Address: testAddress}, []string{"admin"})
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestTokenFromRequest(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(TokenFromRequest(c, testCookie))
	})

	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer header", "Bearer abc", "", "abc"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"header wins over cookie", "Bearer abc", "def", "abc"},
		{"cookie fallback", "", "def", "def"},
		{"other scheme", "Basic abc", "def", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: testCookie, Value: tt.cookie})
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}
