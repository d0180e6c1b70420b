package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/orgsync/directory-sync/internal/api/http/handlers"
	"github.com/orgsync/directory-sync/internal/auth"
	"github.com/orgsync/directory-sync/internal/domain"
	"github.com/orgsync/directory-sync/internal/observability"
	"github.com/orgsync/directory-sync/internal/service"
)

type stubRunner struct {
	lastOpts domain.SyncOptions
	result   *domain.SyncResult
	status   *domain.SyncStatus
	err      error
}

func (s *stubRunner) PerformFullSync(_ context.Context, opts domain.SyncOptions) *domain.SyncResult {
	s.lastOpts = opts
	return s.result
}

func (s *stubRunner) GetSyncStatus(context.Context) (*domain.SyncStatus, error) {
	return s.status, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app    *fiber.App
	runner *stubRunner
	admin  string
	viewer string
}

func newTestServer(t *testing.T, redisErr error) *testServer {
	t.Helper()

	logger := zaptest.NewLogger(t)
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("test-secret", 30)
	runner := &stubRunner{}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("directory-sync", "test", map[string]handlers.Pinger{
			"postgres": stubPinger{},
			"redis":    stubPinger{err: redisErr},
		}),
		Sync:           handlers.NewSyncHandler(runner),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	admin, _, err := tokens.GenerateToken("ops-admin", domain.RoleAdmin)
	require.NoError(t, err)
	viewer, _, err := tokens.GenerateToken("ops-viewer", domain.RoleViewer)
	require.NoError(t, err)

	return &testServer{app: app, runner: runner, admin: admin, viewer: viewer}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestTriggerSync(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	s.runner.result = &domain.SyncResult{
		RunID:           "run-1",
		Mode:            domain.SyncModeFull,
		Success:         true,
		Phase:           domain.SyncPhaseCompleted,
		DepartmentStats: domain.SyncStats{Created: 3},
	}

	status, body := s.do(t, stdhttp.MethodPost, "/api/v1/directory/sync", s.admin, `{"full_sync":true,"batch_size":20}`)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, domain.SyncOptions{FullSync: true, BatchSize: 20}, s.runner.lastOpts)

	data := body["data"].(map[string]any)
	assert.Equal(t, "run-1", data["run_id"])
	assert.Equal(t, true, data["success"])
	assert.Equal(t, []any{}, data["errors"])
	assert.Equal(t, float64(3), data["department_stats"].(map[string]any)["created"])
}

func TestTriggerSync_EmptyBodyRunsIncremental(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	s.runner.result = &domain.SyncResult{RunID: "run-2", Mode: domain.SyncModeIncremental, Success: true}

	status, _ := s.do(t, stdhttp.MethodPost, "/api/v1/directory/sync", s.admin, "")
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, domain.SyncOptions{}, s.runner.lastOpts)
}

func TestTriggerSync_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		token    func(*testServer) string
		body     string
		result   *domain.SyncResult
		wantCode int
		wantErr  string
	}{
		{
			name:     "no token",
			token:    func(*testServer) string { return "" },
			wantCode: stdhttp.StatusUnauthorized,
			wantErr:  "UNAUTHORIZED",
		},
		{
			name:     "viewer cannot trigger",
			token:    func(s *testServer) string { return s.viewer },
			wantCode: stdhttp.StatusForbidden,
			wantErr:  "Forbidden",
		},
		{
			name:     "exclusive flags",
			token:    func(s *testServer) string { return s.admin },
			body:     `{"department_only":true,"user_only":true}`,
			wantCode: stdhttp.StatusBadRequest,
			wantErr:  "VALIDATION_FAILED",
		},
		{
			name:     "negative batch",
			token:    func(s *testServer) string { return s.admin },
			body:     `{"batch_size":-1}`,
			wantCode: stdhttp.StatusBadRequest,
			wantErr:  "VALIDATION_FAILED",
		},
		{
			name:  "lock contention",
			token: func(s *testServer) string { return s.admin },
			body:  `{"full_sync":true}`,
			result: &domain.SyncResult{
				RunID:  "run-3",
				Phase:  domain.SyncPhaseFailed,
				Errors: []string{service.ErrLockContention.Error()},
			},
			wantCode: stdhttp.StatusConflict,
			wantErr:  "CONFLICT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.runner.result = tt.result
			status, body := s.do(t, stdhttp.MethodPost, "/api/v1/directory/sync", tt.token(s), tt.body)
			assert.Equal(t, tt.wantCode, status)
			assert.Equal(t, tt.wantErr, errorCode(body))
		})
	}
}

func TestSyncStatus(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	last := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s.runner.status = &domain.SyncStatus{
		IsRunning:       true,
		Phase:           domain.SyncPhaseSyncingUsers,
		LastSyncTime:    &last,
		UserCount:       120,
		DepartmentCount: 14,
	}

	status, body := s.do(t, stdhttp.MethodGet, "/api/v1/directory/sync/status", s.viewer, "")
	require.Equal(t, stdhttp.StatusOK, status)

	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["is_running"])
	assert.Equal(t, "SYNCING_USERS", data["phase"])
	assert.Equal(t, float64(120), data["user_count"])
	assert.Equal(t, float64(14), data["department_count"])
	assert.Equal(t, "2026-05-01T08:00:00Z", data["last_sync_time"])
	assert.NotContains(t, data, "last_result")

	s.runner.err = errors.New("redis down")
	status, body = s.do(t, stdhttp.MethodGet, "/api/v1/directory/sync/status", s.viewer, "")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, status)
	assert.Equal(t, "UNAVAILABLE", errorCode(body))
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	healthy := newTestServer(t, nil)
	status, body := healthy.do(t, stdhttp.MethodGet, "/health/live", "", "")
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = healthy.do(t, stdhttp.MethodGet, "/health/ready", "", "")
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	req := httptest.NewRequest(stdhttp.MethodGet, "/metrics", nil)
	resp, err := healthy.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `directory_sync_http_requests_total{method="GET",path="/health/live",status="200"} 1`)

	degraded := newTestServer(t, errors.New("connection refused"))
	status, body = degraded.do(t, stdhttp.MethodGet, "/health/ready", "", "")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))
}
