package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utellme/utellme/internal/app"
	"github.com/utellme/utellme/internal/config"
	"github.com/utellme/utellme/internal/idempotency"
	"github.com/utellme/utellme/internal/testutil"
)

type envelope struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

type testServer struct {
	t       *testing.T
	app     *app.App
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		AppName:              "uTellMe",
		AppEnv:               "development",
		AppURL:               "http://localhost:8090",
		JWTSecret:            "test-secret",
		JWTExpiry:            time.Hour,
		TokenMagicLinkExpiry: 10 * time.Minute,
		PaymentProvider:      "stripe",
		WebhookEventTTL:      time.Hour,
	}

	a, err := app.Assemble(cfg, testutil.NewDB(t), nil, idempotency.NewMemoryStore())
	require.NoError(t, err)
	require.Nil(t, a.PaymentService)

	return &testServer{t: t, app: a, handler: SetupRoutes(a)}
}

// signIn returns a bearer token for a new user.
func (s *testServer) signIn(email string) string {
	s.t.Helper()
	user := testutil.CreateUser(s.t, s.app.DB, email)
	token, _, err := s.app.AuthService.StartSession(context.Background(), user.ID)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, target, token, body string) (int, envelope) {
	s.t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func query(procedure string, input any) string {
	raw, _ := json.Marshal(input)
	return "/api/" + procedure + "?input=" + url.QueryEscape(string(raw))
}

func TestProjectProcedures(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn("owner@example.com")

	status, env := s.do(http.MethodPost, "/api/projects.create", token, `{"name":"Test"}`)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Result)

	var project struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		OrderBy string `json:"orderBy"`
	}
	require.NoError(t, json.Unmarshal(env.Result.Data, &project))
	assert.Equal(t, "Test", project.Name)
	assert.Equal(t, "createdDesc", project.OrderBy)

	status, env = s.do(http.MethodGet, "/api/projects.getAll", token, "")
	require.Equal(t, http.StatusOK, status)
	var projects []struct {
		ID        string            `json:"id"`
		Feedbacks []json.RawMessage `json:"feedbacks"`
	}
	require.NoError(t, json.Unmarshal(env.Result.Data, &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)

	status, env = s.do(http.MethodPost, "/api/projects.edit", token,
		`{"projectId":"`+project.ID+`","newPrimaryColor":"#123456","newOrderBy":"ratingAsc"}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"count":1}`, string(env.Result.Data))

	status, env = s.do(http.MethodGet, query("projects.getInfo", map[string]string{"projectId": project.ID}), token, "")
	require.Equal(t, http.StatusOK, status)
	var info struct {
		PrimaryColor  *string  `json:"primaryColor"`
		OrderBy       string   `json:"orderBy"`
		FeedbackCount int      `json:"feedbackCount"`
		AverageRating *float64 `json:"averageRating"`
	}
	require.NoError(t, json.Unmarshal(env.Result.Data, &info))
	require.NotNil(t, info.PrimaryColor)
	assert.Equal(t, "#123456", *info.PrimaryColor)
	assert.Equal(t, "ratingAsc", info.OrderBy)
	assert.Equal(t, 0, info.FeedbackCount)
	assert.Nil(t, info.AverageRating)

	status, _ = s.do(http.MethodPost, "/api/projects.delete", token, `{"projectId":"`+project.ID+`"}`)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodGet, query("projects.getOne", map[string]string{"projectId": project.ID}), "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestPublicFeedbackSubmission(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn("owner@example.com")

	_, env := s.do(http.MethodPost, "/api/projects.create", token, `{"name":"Shop"}`)
	var project struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Result.Data, &project))

	status, env := s.do(http.MethodGet, query("projects.getOne", map[string]string{"projectId": project.ID}), "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Result.Data), `"name":"Shop"`)
	assert.NotContains(t, string(env.Result.Data), "userId")

	status, _ = s.do(http.MethodPost, "/api/feedbacks.create", "",
		`{"projectId":"`+project.ID+`","rating":4,"content":"Nice"}`)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPost, "/api/feedbacks.create", "",
		`{"projectId":"`+project.ID+`","rating":9,"content":"Nice"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "rating")

	status, env = s.do(http.MethodGet, query("feedbacks.getAll", map[string]string{"projectId": project.ID}), token, "")
	require.Equal(t, http.StatusOK, status)
	var feedback []struct {
		Rating int `json:"rating"`
	}
	require.NoError(t, json.Unmarshal(env.Result.Data, &feedback))
	require.Len(t, feedback, 1)
	assert.Equal(t, 4, feedback[0].Rating)
}

func TestFeedbackSubmissionIsNotThrottled(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn("owner@example.com")

	_, env := s.do(http.MethodPost, "/api/projects.create", token, `{"name":"Shop"}`)
	var project struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Result.Data, &project))

	for i := range 30 {
		status, _ := s.do(http.MethodPost, "/api/feedbacks.create", "",
			`{"projectId":"`+project.ID+`","rating":5,"content":"Nice"}`)
		require.Equal(t, http.StatusOK, status, "submission %d", i)
	}
}

func TestProcedureErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn("owner@example.com")

	tests := []struct {
		name     string
		method   string
		target   string
		token    string
		body     string
		wantCode int
		wantErr  string
	}{
		{"anonymous owner query", http.MethodGet, "/api/projects.getAll", "", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"invalid bearer", http.MethodGet, "/api/projects.getAll", "not-a-jwt", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed body", http.MethodPost, "/api/projects.create", token, `{"name":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing field", http.MethodPost, "/api/projects.create", token, `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"foreign feedback delete", http.MethodPost, "/api/feedbacks.delete", token, `{"feedbackId":"missing"}`, http.StatusForbidden, "FORBIDDEN"},
		{"billing not configured", http.MethodPost, "/api/stripe.createCheckoutSession", token, "", http.StatusBadGateway, "BAD_GATEWAY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(tt.method, tt.target, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestMutationsRejectGet(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodGet, "/api/projects.create", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestSubscriptionStatusProcedure(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn("owner@example.com")

	status, env := s.do(http.MethodGet, "/api/user.subscriptionStatus", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"inactive","isPro":false,"features":[]}`, string(env.Result.Data))
}

func TestSessionEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn("owner@example.com")

	status, env := s.do(http.MethodGet, "/auth/session", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Result.Data), "owner@example.com")

	status, _ = s.do(http.MethodPost, "/auth/logout", token, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodGet, "/api/projects.getAll", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/webhooks/payment", "", `{}`)
	assert.Equal(t, http.StatusNotFound, status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
