// Package webhook implements the inbound HTTP webhook server (spec
// §4.12): per-endpoint routing, provider-specific signature validation,
// normalization to model.WebhookEvent, and publication onto the bus.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/model"
)

// Endpoint is one configured webhook receiver.
type Endpoint struct {
	Name           string `yaml:"name"`
	Path           string `yaml:"path"`
	Provider       string `yaml:"provider"` // "github", "sentry", or "" for generic
	Secret         string `yaml:"secret"`
	Channel        string `yaml:"channel"`
	PromptTemplate string `yaml:"prompt_template"`
}

// Config configures Server.
type Config struct {
	Bind      string
	Port      int
	Endpoints []Endpoint
	Logger    *slog.Logger
}

// Server is Shannon's webhook HTTP server. It is a thin, stateless
// router; all meaningful behavior lives in validateSignature and the
// per-provider normalizers.
type Server struct {
	bus       *bus.Bus
	endpoints map[string]Endpoint
	logger    *slog.Logger
	httpSrv   *http.Server
	stream    *StreamHandler
}

// New constructs a Server bound to cfg.Bind:cfg.Port. Endpoints with an
// empty secret are logged as a startup warning (spec §4.12's fail-closed
// policy) but still registered — they reject every request at request
// time rather than being silently dropped.
func New(b *bus.Bus, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	endpoints := make(map[string]Endpoint, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		if e.Secret == "" {
			logger.Warn("webhook: endpoint configured with empty secret, all requests will be rejected", "name", e.Name, "path", e.Path)
		}
		endpoints[e.Path] = e
	}
	s := &Server{bus: b, endpoints: endpoints, logger: logger, stream: NewStreamHandler(b, logger)}

	mux := http.NewServeMux()
	for path := range endpoints {
		mux.HandleFunc(path, s.handle)
	}
	mux.Handle("/ws/events", s.stream)
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the HTTP server in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("webhook: server exited", "error", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := s.endpoints[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if !validateSignature(endpoint, r, body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event := normalize(endpoint, r, payload)
	s.bus.Publish(bus.Event{
		Type:                bus.EventWebhookReceived,
		WebhookEvent:        &event,
		WebhookPromptFormat: endpoint.PromptTemplate,
	})
	w.WriteHeader(http.StatusOK)
}

// validateSignature fails closed: an endpoint with an empty secret never
// validates, regardless of what the request presents.
func validateSignature(e Endpoint, r *http.Request, body []byte) bool {
	if e.Secret == "" {
		return false
	}
	switch e.Provider {
	case "github":
		return validateGitHubSignature(e.Secret, r.Header.Get("X-Hub-Signature-256"), body)
	case "sentry":
		return validateSentrySignature(e.Secret, r.Header.Get("sentry-hook-signature"), body)
	default:
		provided := r.Header.Get("X-Webhook-Secret")
		return subtle.ConstantTimeCompare([]byte(provided), []byte(e.Secret)) == 1
	}
}

func validateGitHubSignature(secret, header string, body []byte) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	expected := hmacHex(secret, body)
	return subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(header, prefix)), []byte(expected)) == 1
}

func validateSentrySignature(secret, header string, body []byte) bool {
	if header == "" {
		return false
	}
	expected := hmacHex(secret, body)
	return subtle.ConstantTimeCompare([]byte(header), []byte(expected)) == 1
}

func hmacHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// normalize produces a model.WebhookEvent from the raw payload per the
// endpoint's provider (spec §4.12 step 4).
func normalize(e Endpoint, r *http.Request, payload map[string]any) model.WebhookEvent {
	switch e.Provider {
	case "github":
		return normalizeGitHub(e, r.Header.Get("X-GitHub-Event"), payload)
	case "sentry":
		return normalizeSentry(e, payload)
	default:
		return normalizeGeneric(e, payload)
	}
}

func normalizeGitHub(e Endpoint, eventType string, payload map[string]any) model.WebhookEvent {
	summary := fmt.Sprintf("github %s event", eventType)
	switch eventType {
	case "push":
		pusher, _ := nestedString(payload, "pusher", "name")
		repo, _ := nestedString(payload, "repository", "full_name")
		ref, _ := payload["ref"].(string)
		summary = fmt.Sprintf("%s pushed to %s (%s)", pusher, repo, ref)
	case "pull_request":
		action, _ := payload["action"].(string)
		repo, _ := nestedString(payload, "repository", "full_name")
		title, _ := nestedString(payload, "pull_request", "title")
		summary = fmt.Sprintf("pull request %s on %s: %s", action, repo, title)
	case "issues":
		action, _ := payload["action"].(string)
		repo, _ := nestedString(payload, "repository", "full_name")
		title, _ := nestedString(payload, "issue", "title")
		summary = fmt.Sprintf("issue %s on %s: %s", action, repo, title)
	case "workflow_run":
		repo, _ := nestedString(payload, "repository", "full_name")
		name, _ := nestedString(payload, "workflow_run", "name")
		conclusion, _ := nestedString(payload, "workflow_run", "conclusion")
		summary = fmt.Sprintf("workflow %q on %s concluded: %s", name, repo, conclusion)
	}
	return model.WebhookEvent{
		Source:        "github",
		EventType:     eventType,
		Summary:       summary,
		Payload:       payload,
		ChannelTarget: e.Channel,
	}
}

func normalizeSentry(e Endpoint, payload map[string]any) model.WebhookEvent {
	title, _ := nestedString(payload, "data", "issue", "title")
	if title == "" {
		title, _ = payload["message"].(string)
	}
	culprit, _ := nestedString(payload, "data", "issue", "culprit")
	summary := title
	if culprit != "" {
		summary = fmt.Sprintf("%s (%s)", title, culprit)
	}
	action, _ := payload["action"].(string)
	return model.WebhookEvent{
		Source:        "sentry",
		EventType:     action,
		Summary:       summary,
		Payload:       payload,
		ChannelTarget: e.Channel,
	}
}

func normalizeGeneric(e Endpoint, payload map[string]any) model.WebhookEvent {
	summary, _ := payload["message"].(string)
	if summary == "" {
		summary, _ = payload["summary"].(string)
	}
	if summary == "" {
		raw, _ := json.Marshal(payload)
		summary = string(raw)
		if len(summary) > 200 {
			summary = summary[:200] + "..."
		}
	}
	return model.WebhookEvent{
		Source:        "generic",
		EventType:     "webhook",
		Summary:       summary,
		Payload:       payload,
		ChannelTarget: e.Channel,
	}
}

func nestedString(m map[string]any, keys ...string) (string, bool) {
	var cur any = m
	for _, k := range keys {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = asMap[k]
		if !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}
