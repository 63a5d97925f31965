package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utellme/utellme/internal/apperr"
)

type greetInput struct {
	Name string `json:"name" validate:"required,max=10"`
}

type greetOutput struct {
	Greeting string `json:"greeting"`
}

func greet(_ context.Context, in greetInput) (*greetOutput, error) {
	if in.Name == "boom" {
		return nil, errors.New("database is on fire")
	}
	if in.Name == "nobody" {
		return nil, apperr.NotFound("No such person")
	}
	return &greetOutput{Greeting: "hi " + in.Name}, nil
}

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

func serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	Handle(greet).ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestHandleQueryInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/greet?input="+url.QueryEscape(`{"name":"ada"}`), nil)
	rec, env := serve(t, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NotNil(t, env.Result)
	assert.JSONEq(t, `{"greeting":"hi ada"}`, string(env.Result.Data))
}

func TestHandleBodyInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/greet", strings.NewReader(`{"name":"bob"}`))
	rec, env := serve(t, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"greeting":"hi bob"}`, string(env.Result.Data))
}

func TestHandleErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"missing field", `{}`, http.StatusBadRequest, "BAD_REQUEST", "name"},
		{"too long", `{"name":"abcdefghijk"}`, http.StatusBadRequest, "BAD_REQUEST", "name"},
		{"wrong type", `{"name":5}`, http.StatusBadRequest, "BAD_REQUEST", "name"},
		{"malformed", `{`, http.StatusBadRequest, "BAD_REQUEST", ""},
		{"not found", `{"name":"nobody"}`, http.StatusNotFound, "NOT_FOUND", ""},
		{"internal", `{"name":"boom"}`, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/greet", strings.NewReader(tt.body))
			rec, env := serve(t, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Nil(t, env.Result)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			if tt.wantField != "" {
				assert.Contains(t, env.Error.Fields, tt.wantField)
			}
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/greet", strings.NewReader(`{"name":"boom"}`))
	rec, env := serve(t, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "fire")
	assert.Equal(t, "Something went wrong", env.Error.Message)
}

func TestHandleEmptyInput(t *testing.T) {
	called := false
	h := Handle(func(_ context.Context, _ Empty) (any, error) {
		called = true
		return nil, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/noop", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":{"data":null}}`, rec.Body.String())
}
