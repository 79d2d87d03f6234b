package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shannon-ai/shannon/internal/bus"
)

func signGitHub(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestGitHubPushWebhookEndToEnd(t *testing.T) {
	b := bus.New(nil)
	defer b.Stop(time.Second)

	received := make(chan bus.Event, 1)
	b.Subscribe(bus.EventWebhookReceived, "test", func(ctx context.Context, e bus.Event) {
		received <- e
	})

	s := New(b, Config{
		Bind: "127.0.0.1",
		Port: 0,
		Endpoints: []Endpoint{{
			Name: "github", Path: "/hooks/github", Provider: "github",
			Secret: "gh", Channel: "discord:42", PromptTemplate: "GitHub {event_type}: {summary}",
		}},
	})

	payload := map[string]any{
		"pusher":     map[string]any{"name": "octocat"},
		"repository": map[string]any{"full_name": "octo/repo"},
		"ref":        "refs/heads/main",
	}
	body, _ := json.Marshal(payload)
	sig := signGitHub("gh", body)

	req := httptest.NewRequest(http.MethodPost, "/hooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", sig)
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case e := <-received:
		if e.WebhookEvent == nil {
			t.Fatalf("expected webhook event payload")
		}
		if !contains(e.WebhookEvent.Summary, "octocat") || !contains(e.WebhookEvent.Summary, "octo/repo") {
			t.Fatalf("expected summary to mention pusher and repo, got %q", e.WebhookEvent.Summary)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a WebhookReceived event")
	}
}

func TestEmptySecretEndpointRejectsAllRequests(t *testing.T) {
	b := bus.New(nil)
	defer b.Stop(time.Second)
	s := New(b, Config{Endpoints: []Endpoint{{Name: "noop", Path: "/hooks/noop", Secret: ""}}})

	req := httptest.NewRequest(http.MethodPost, "/hooks/noop", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Webhook-Secret", "")
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for empty-secret endpoint, got %d", rec.Code)
	}
}

func TestInvalidSignatureRejected(t *testing.T) {
	b := bus.New(nil)
	defer b.Stop(time.Second)
	s := New(b, Config{Endpoints: []Endpoint{{Name: "github", Path: "/hooks/github", Provider: "github", Secret: "gh"}}})

	req := httptest.NewRequest(http.MethodPost, "/hooks/github", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid signature, got %d", rec.Code)
	}
}

func TestInvalidJSONBodyRejected(t *testing.T) {
	b := bus.New(nil)
	defer b.Stop(time.Second)
	s := New(b, Config{Endpoints: []Endpoint{{Name: "generic", Path: "/hooks/generic", Secret: "s"}}})

	req := httptest.NewRequest(http.MethodPost, "/hooks/generic", bytes.NewReader([]byte("not json")))
	req.Header.Set("X-Webhook-Secret", "s")
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", rec.Code)
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	b := bus.New(nil)
	defer b.Stop(time.Second)
	s := New(b, Config{Endpoints: []Endpoint{{Name: "generic", Path: "/hooks/generic", Secret: "s"}}})

	req := httptest.NewRequest(http.MethodPost, "/hooks/unknown", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (substr == "" || bytes.Contains([]byte(s), []byte(substr)))
}
