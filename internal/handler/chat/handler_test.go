package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
	"github.com/zhouzirui/z-scout/backend/internal/service/checkpoint"
)

type stubService struct {
	histories   map[string][]*schema.Message
	disabled    bool
	preferences map[string][]string
}

func (s *stubService) History(_ context.Context, session chat.Session) ([]*schema.Message, error) {
	if s.disabled {
		return nil, agent.ErrCheckpointerDisabled
	}
	msgs, ok := s.histories[session.Key()]
	if !ok {
		return nil, checkpoint.ErrSessionNotFound
	}
	return msgs, nil
}

func (s *stubService) RecordPreference(_ context.Context, actorID, text string) (string, error) {
	if s.disabled {
		return "", agent.ErrMemoryDisabled
	}
	if s.preferences == nil {
		s.preferences = make(map[string][]string)
	}
	s.preferences[actorID] = append(s.preferences[actorID], text)
	return "pref-1", nil
}

func setupRouter(svc *stubService) *chi.Mux {
	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r
}

func TestGetSessionReturnsTranscript(t *testing.T) {
	svc := &stubService{histories: map[string][]*schema.Message{
		"u1/t1": {schema.UserMessage("hi"), schema.AssistantMessage("hello", nil)},
	}}
	r := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/sessions/u1/t1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body transcriptResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Session.ActorID != "u1" || body.Session.ThreadID != "t1" {
		t.Fatalf("unexpected session %+v", body.Session)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "user" || body.Messages[1].Content != "hello" {
		t.Fatalf("unexpected transcript %+v", body.Messages)
	}
}

func TestGetSessionStatuses(t *testing.T) {
	cases := []struct {
		name string
		svc  *stubService
		want int
	}{
		{name: "unknown session", svc: &stubService{}, want: http.StatusNotFound},
		{name: "checkpointing off", svc: &stubService{disabled: true}, want: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouter(tc.svc)
			req := httptest.NewRequest(http.MethodGet, "/sessions/u1/missing", nil)
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)

			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestRecordPreference(t *testing.T) {
	svc := &stubService{}
	r := setupRouter(svc)

	payload, _ := json.Marshal(map[string]string{"actorId": "u1", "text": "prefers metric units"})
	req := httptest.NewRequest(http.MethodPost, "/preferences", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["id"] != "pref-1" || body["namespace"] != "preferences/u1" {
		t.Fatalf("unexpected body %v", body)
	}
	if got := svc.preferences["u1"]; len(got) != 1 || got[0] != "prefers metric units" {
		t.Fatalf("unexpected stored preferences %v", got)
	}
}

func TestRecordPreferenceValidation(t *testing.T) {
	r := setupRouter(&stubService{})

	for _, body := range []string{`{"actorId":"u1"}`, `{"actorId":"u1","text":"   "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/preferences", bytes.NewReader([]byte(body)))
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, resp.Code)
		}
	}
}

func TestRecordPreferenceMemoryDisabled(t *testing.T) {
	r := setupRouter(&stubService{disabled: true})

	req := httptest.NewRequest(http.MethodPost, "/preferences", bytes.NewReader([]byte(`{"text":"tea"}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
