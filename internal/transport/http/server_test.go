package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantum-dashboard/internal/bootstrap"
	"quantum-dashboard/internal/config"
	"quantum-dashboard/internal/testutil"
	"quantum-dashboard/internal/transport/http/response"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t   *testing.T
	srv *httptest.Server
	app *bootstrap.App
}

func newTestServer(t *testing.T, tweak func(*config.Config)) *testServer {
	t.Helper()
	t.Setenv("CONFIG_FILE", t.TempDir()+"/none.toml")
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.App.GinMode = "test"
	cfg.Simulator.Enabled = false
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.InitialAdmin = config.InitialAdminConfig{Username: "root", Email: "root@example.com", Password: "correct-horse"}
	if tweak != nil {
		tweak(cfg)
	}

	mr := miniredis.RunT(t)
	app, err := bootstrap.Assemble(context.Background(), cfg, nil, testutil.NewDB(t), redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(app))
	t.Cleanup(func() {
		app.Hub.Close(context.Background())
		srv.Close()
	})
	return &testServer{t: t, srv: srv, app: app}
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *testServer) register(username string) string {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "superposition",
	})
	require.Equal(s.t, http.StatusOK, status, env.Message)
	return decode[struct{ Token string }](s.t, env.Data).Token
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, status, env.Message)
	return decode[struct{ Token string }](s.t, env.Data).Token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.register("ada")

	status, env := s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[struct {
		Username string
		Role     string
	}](t, env.Data)
	assert.Equal(t, "ada", me.Username)
	assert.Equal(t, "user", me.Role)

	status, env = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "ada", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, response.CodeInvalidCredentials, env.Code)

	status, env = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ada", "email": "other@example.com", "password": "superposition",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.CodeUsernameExists, env.Code)

	status, env = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ada2", "email": "ada@example.com", "password": "superposition",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.CodeEmailExists, env.Code)

	status, env = s.do(http.MethodGet, "/api/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, response.CodeUnauthorized, env.Code)
}

func TestJobRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	ada := s.register("ada")
	bob := s.register("bob")

	status, env := s.do(http.MethodPost, "/api/jobs", ada, map[string]any{
		"name": "Bell pair", "backend": "ibm_brisbane", "qubits": 2, "shots": 1024, "tags": []string{"demo"},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	job := decode[struct {
		ID     uint
		Status string
	}](t, env.Data)
	assert.Equal(t, "queued", job.Status)

	status, env = s.do(http.MethodPost, "/api/jobs", ada, map[string]any{
		"name": "offline", "backend": "rigetti_ankaa", "qubits": 2, "shots": 10,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.CodeBackendUnavailable, env.Code)

	status, env = s.do(http.MethodGet, "/api/jobs?status=queued", ada, nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[response.ListData](t, env.Data)
	assert.Equal(t, int64(1), list.Total)

	jobPath := fmt.Sprintf("/api/jobs/%d", job.ID)
	status, _ = s.do(http.MethodGet, jobPath, bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodPatch, jobPath+"/status", ada, map[string]string{"status": "running"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(http.MethodPatch, jobPath+"/status", ada, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPatch, jobPath+"/status", ada, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.CodeInvalidTransition, env.Code)

	status, env = s.do(http.MethodGet, "/api/analytics/stats", ada, nil)
	require.Equal(t, http.StatusOK, status)
	stats := decode[struct {
		TotalJobs int64 `json:"total_jobs"`
	}](t, env.Data)
	assert.Equal(t, int64(1), stats.TotalJobs)

	status, _ = s.do(http.MethodGet, "/api/analytics/trends?days=365", ada, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	ada := s.register("ada")

	status, env := s.do(http.MethodGet, "/api/admin/users", ada, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, response.CodeForbidden, env.Code)

	root := s.login("root", "correct-horse")
	status, env = s.do(http.MethodGet, "/api/admin/users", root, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), decode[response.ListData](t, env.Data).Total)

	status, env = s.do(http.MethodPost, "/api/admin/pricing-plans", root, map[string]any{
		"name": "Lab", "price_cents": 9900, "interval": "month", "max_qubits": 127,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = s.do(http.MethodPost, "/api/admin/pricing-plans", root, map[string]any{
		"name": "Lab", "price_cents": 1, "interval": "year",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.CodePlanExists, env.Code)
}

func TestAdminRoutes_DemotedAdminTokenRejected(t *testing.T) {
	s := newTestServer(t, nil)
	s.register("ada")
	root := s.login("root", "correct-horse")

	ada := s.login("ada", "superposition")
	status, env := s.do(http.MethodGet, "/api/auth/me", ada, nil)
	require.Equal(t, http.StatusOK, status)
	adaID := decode[struct{ ID uint }](t, env.Data).ID
	rolePath := fmt.Sprintf("/api/admin/users/%d/role", adaID)

	status, env = s.do(http.MethodPatch, rolePath, root, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, status, env.Message)
	adminToken := s.login("ada", "superposition")

	status, _ = s.do(http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPatch, rolePath, root, map[string]string{"role": "user"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = s.do(http.MethodGet, "/api/admin/users", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, response.CodeForbidden, env.Code)

	status, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", adaID), root, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodGet, "/api/admin/users", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestLearningHintUnavailable(t *testing.T) {
	s := newTestServer(t, nil)
	ada := s.register("ada")

	status, env := s.do(http.MethodPost, "/api/learning/hint", ada, map[string]any{"game": "gate-quiz", "question": "what does H do?"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, response.CodeServiceUnavailable, env.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := http.Get(s.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Dependencies map[string]struct {
			OK bool `json:"ok"`
		} `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Dependencies["database"].OK)
	assert.True(t, body.Dependencies["redis"].OK)
	assert.True(t, body.Dependencies["rabbitmq"].OK)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerWindow = 2
		cfg.RateLimit.WindowSeconds = 60
	})

	creds := map[string]string{"username": "nobody", "password": "whatever-pass"}
	for i := 0; i < 2; i++ {
		status, _ := s.do(http.MethodPost, "/api/auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, env := s.do(http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, response.CodeTooManyRequests, env.Code)
}

func TestCollaborationSocket(t *testing.T) {
	s := newTestServer(t, nil)
	ada := s.register("ada")

	status, env := s.do(http.MethodPost, "/api/sessions", ada, map[string]string{"name": "Bell workshop"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	session := decode[struct {
		Code    string
		OwnerID uint `json:"owner_id"`
	}](t, env.Data)

	wsURL := func(q url.Values) string {
		return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/collaboration?" + q.Encode()
	}
	dialStatus := func(q url.Values) int {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(q), nil)
		if err == nil {
			conn.Close()
			return http.StatusSwitchingProtocols
		}
		require.NotNil(t, resp, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, dialStatus(url.Values{"sessionId": {session.Code}}))
	assert.Equal(t, http.StatusNotFound, dialStatus(url.Values{"sessionId": {"missing"}, "token": {ada}}))
	assert.Equal(t, http.StatusForbidden, dialStatus(url.Values{
		"sessionId": {session.Code}, "token": {ada}, "userId": {"999"},
	}))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(url.Values{
		"sessionId": {session.Code},
		"token":     {ada},
		"userId":    {fmt.Sprint(session.OwnerID)},
		"projectId": {"7"},
	}), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var frame struct {
		Type         string `json:"type"`
		Participants []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"participants"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "connection_established", frame.Type)
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "session_joined", frame.Type)
	require.Len(t, frame.Participants, 1)
	assert.Equal(t, "ada", frame.Participants[0].Name)
}
