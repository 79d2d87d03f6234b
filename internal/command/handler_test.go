package command

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shannon-ai/shannon/internal/auth"
	"github.com/shannon-ai/shannon/internal/contextstore"
	"github.com/shannon-ai/shannon/internal/memory"
	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/pause"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	ctxStore, err := contextstore.OpenSQLite(filepath.Join(t.TempDir(), "ctx.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite context: %v", err)
	}
	t.Cleanup(func() { ctxStore.Close() })
	memStore, err := memory.OpenSQLite(filepath.Join(t.TempDir(), "mem.db"))
	if err != nil {
		t.Fatalf("OpenSQLite memory: %v", err)
	}
	t.Cleanup(func() { memStore.Close() })

	authMgr := auth.NewManager(auth.Config{
		Lists:              auth.Lists{Admin: []string{"discord:admin1"}},
		RateLimitPerMinute: 20,
		SudoTimeout:        time.Minute,
	})

	return New(Config{
		Auth:    authMgr,
		Context: ctxStore,
		Memory:  memStore,
		Pause:   pause.New(),
	})
}

func TestParseSplitsNameAndArgs(t *testing.T) {
	inv := Parse("discord", "ch1", "u1", model.PermissionPublic, "/memory search blue")
	if inv.Name != "memory" || len(inv.Args) != 2 || inv.Args[0] != "search" || inv.Args[1] != "blue" {
		t.Fatalf("unexpected parse: %+v", inv)
	}
}

func TestUnknownCommandReplies(t *testing.T) {
	h := newTestHandler(t)
	out := h.Handle(context.Background(), Parse("discord", "ch1", "u1", model.PermissionPublic, "/nonsense"))
	if !strings.Contains(out, "Unknown command") {
		t.Fatalf("unexpected reply: %q", out)
	}
}

func TestForgetDeniedForPublic(t *testing.T) {
	h := newTestHandler(t)
	out := h.Handle(context.Background(), Parse("discord", "ch1", "u1", model.PermissionPublic, "/forget"))
	if !strings.Contains(out, "requires") {
		t.Fatalf("expected permission denial, got %q", out)
	}
}

func TestForgetAllowedForOperator(t *testing.T) {
	h := newTestHandler(t)
	out := h.Handle(context.Background(), Parse("discord", "ch1", "u1", model.PermissionOperator, "/forget"))
	if !strings.Contains(out, "cleared") {
		t.Fatalf("expected success, got %q", out)
	}
}

func TestMemoryClearRequiresAdminEvenThoughTableIsPublic(t *testing.T) {
	h := newTestHandler(t)
	out := h.Handle(context.Background(), Parse("discord", "ch1", "u1", model.PermissionOperator, "/memory clear"))
	if !strings.Contains(out, "admin") {
		t.Fatalf("expected admin-only denial, got %q", out)
	}
}

func TestPauseAndStatus(t *testing.T) {
	h := newTestHandler(t)
	h.Handle(context.Background(), Parse("discord", "ch1", "u1", model.PermissionOperator, "/pause"))
	out := h.Handle(context.Background(), Parse("discord", "ch1", "u1", model.PermissionPublic, "/status"))
	if !strings.Contains(out, "Paused") {
		t.Fatalf("expected paused status, got %q", out)
	}
}

func TestSudoRequestAndApprove(t *testing.T) {
	h := newTestHandler(t)
	out := h.Handle(context.Background(), Parse("discord", "u1", "u1", model.PermissionPublic, "/sudo operator"))
	if !strings.Contains(out, "Escalation requested") {
		t.Fatalf("expected escalation request, got %q", out)
	}
	start := strings.Index(out, "(id ")
	end := strings.Index(out, ")")
	if start == -1 || end <= start {
		t.Fatalf("expected a request id in %q", out)
	}
	id := out[start+len("(id ") : end]
	out = h.Handle(context.Background(), Parse("discord", "u1", "admin1", model.PermissionAdmin, "/sudo approve "+id))
	if !strings.Contains(out, "Escalation approved") {
		t.Fatalf("expected approval, got %q", out)
	}
	if got := h.auth.EffectivePermission("discord", "u1"); got != model.PermissionOperator {
		t.Fatalf("expected operator after approval, got %s", got)
	}
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, messages []model.ContextMessage) (string, error) {
	return "condensed", nil
}

func TestSummarizeForcesCollapseEvenBelowThreshold(t *testing.T) {
	ctxStore, err := contextstore.OpenSQLite(filepath.Join(t.TempDir(), "ctx.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite context: %v", err)
	}
	t.Cleanup(func() { ctxStore.Close() })
	ctxStore.Append(context.Background(), model.ContextMessage{Platform: "discord", Channel: "ch1", Role: model.RoleUser, Content: "a", Timestamp: 1})
	ctxStore.Append(context.Background(), model.ContextMessage{Platform: "discord", Channel: "ch1", Role: model.RoleUser, Content: "b", Timestamp: 2})

	h := New(Config{
		Auth:    auth.NewManager(auth.Config{}),
		Context: ctxStore,
		Pause:   pause.New(),
		Summarize: func(ctx context.Context, platform, channel string) error {
			_, err := ctxStore.ForceSummarize(ctx, platform, channel, stubSummarizer{})
			return err
		},
	})

	out := h.Handle(context.Background(), Parse("discord", "ch1", "u1", model.PermissionPublic, "/summarize"))
	if !strings.Contains(out, "summarized") {
		t.Fatalf("expected success reply, got %q", out)
	}

	msgs, err := ctxStore.Get(context.Background(), "discord", "ch1", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != model.RoleSystem || msgs[1].Content != "b" {
		t.Fatalf("expected the older message collapsed into one summary row ahead of the newer one, got %+v", msgs)
	}
}
