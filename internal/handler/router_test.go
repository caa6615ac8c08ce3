package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	middlewarePkg "github.com/zhouzirui/z-scout/backend/internal/middleware"
	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
	"github.com/zhouzirui/z-scout/backend/internal/service/checkpoint"
)

type stubAgent struct{}

func (stubAgent) Invoke(_ context.Context, _ any, _ agent.StepObserver) agent.InvocationResult {
	answer := "ok"
	return agent.InvocationResult{Result: &answer, Steps: 2, Success: true}
}

func (stubAgent) History(context.Context, chat.Session) ([]*schema.Message, error) {
	return nil, checkpoint.ErrSessionNotFound
}

func (stubAgent) RecordPreference(context.Context, string, string) (string, error) {
	return "", agent.ErrMemoryDisabled
}

func TestRouterRoutes(t *testing.T) {
	r := NewRouter(stubAgent{}, nil)

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/ping", "", http.StatusOK},
		{http.MethodPost, "/invocations", `{"prompt":"hi"}`, http.StatusOK},
		{http.MethodGet, "/api/sessions/u1/t1", "", http.StatusNotFound},
		{http.MethodPost, "/api/preferences", `{"text":"tea"}`, http.StatusServiceUnavailable},
		{http.MethodOptions, "/invocations", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		if resp.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, resp.Code)
		}
	}
}

func TestRouterRateLimitsInvocationsNotPing(t *testing.T) {
	r := NewRouter(stubAgent{}, middlewarePkg.NewRateLimiter(60, 1))

	send := func(method, path, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.RemoteAddr = "10.1.1.1:5000"
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := send(http.MethodPost, "/invocations", `{"prompt":"a"}`); code != http.StatusOK {
		t.Fatalf("first invocation: expected 200, got %d", code)
	}
	if code := send(http.MethodPost, "/invocations", `{"prompt":"b"}`); code != http.StatusTooManyRequests {
		t.Fatalf("second invocation: expected 429, got %d", code)
	}
	if code := send(http.MethodGet, "/ping", ""); code != http.StatusOK {
		t.Fatalf("ping should bypass the limiter, got %d", code)
	}
}
