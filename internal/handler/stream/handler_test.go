package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
)

type stepInvoker struct {
	steps  []agent.Step
	result agent.InvocationResult
}

func (s *stepInvoker) Invoke(_ context.Context, _ any, observe agent.StepObserver) agent.InvocationResult {
	for _, step := range s.steps {
		observe(step)
	}
	return s.result
}

type sseEvent struct {
	name string
	data StreamResponse
}

func readEvents(t *testing.T, body string) []sseEvent {
	t.Helper()

	var (
		events []sseEvent
		name   string
	)
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var data StreamResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err != nil {
				t.Fatalf("decode sse data %q: %v", line, err)
			}
			events = append(events, sseEvent{name: name, data: data})
		}
	}
	return events
}

func serve(inv *stepInvoker, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	New(inv).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/invocations/stream", strings.NewReader(body))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestStreamEmitsStepsThenResult(t *testing.T) {
	answer := "4"
	inv := &stepInvoker{
		steps: []agent.Step{
			{Name: "decide", Index: 1},
			{Name: "respond", Index: 2},
		},
		result: agent.InvocationResult{Result: &answer, Steps: 2, Success: true},
	}

	resp := serve(inv, `{"prompt":"2+2?","actor_id":"u1","thread_id":"t1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := readEvents(t, resp.Body.String())
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.name)
	}
	if strings.Join(names, ",") != "start,step,step,result" {
		t.Fatalf("unexpected events %v", names)
	}
	if events[0].data.SessionID != "u1/t1" {
		t.Fatalf("unexpected session id %q", events[0].data.SessionID)
	}
	if events[1].data.Step == nil || events[1].data.Step.Name != "decide" {
		t.Fatalf("unexpected first step %+v", events[1].data.Step)
	}
	final := events[len(events)-1].data
	if !final.Finished || final.Result == nil || final.Result.Result == nil || *final.Result.Result != "4" {
		t.Fatalf("unexpected final event %+v", final)
	}
}

func TestStreamRejectsMissingPrompt(t *testing.T) {
	resp := serve(&stepInvoker{}, `{}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != agent.ErrEmptyPrompt.Error() {
		t.Fatalf("unexpected body %v", body)
	}
}
