// Package command implements slash-command dispatch (spec §4.8). The
// Pipeline hands off any message beginning with "/" to a Handler before
// ever reaching the LLM; a recognized command never falls through.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/shannon-ai/shannon/internal/auth"
	"github.com/shannon-ai/shannon/internal/contextstore"
	"github.com/shannon-ai/shannon/internal/memory"
	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/pause"
)

// JobLister is the narrow view of the scheduler the /jobs command needs.
type JobLister interface {
	ListJobIDs() []string
}

// Invocation is one parsed slash command.
type Invocation struct {
	Platform string
	Channel  string
	UserID   string
	Level    model.PermissionLevel
	Name     string   // without leading "/"
	Args     []string // space-split remainder
}

// Handler dispatches recognized commands against the core's stores.
type Handler struct {
	auth    *auth.Manager
	ctx     contextstore.Store
	mem     memory.Store
	pause   *pause.Manager
	jobs    JobLister
	summarize func(ctx context.Context, platform, channel string) error
}

// Config wires a Handler's collaborators.
type Config struct {
	Auth      *auth.Manager
	Context   contextstore.Store
	Memory    memory.Store
	Pause     *pause.Manager
	Jobs      JobLister
	Summarize func(ctx context.Context, platform, channel string) error
}

// New constructs a Handler.
func New(cfg Config) *Handler {
	return &Handler{auth: cfg.Auth, ctx: cfg.Context, mem: cfg.Memory, pause: cfg.Pause, jobs: cfg.Jobs, summarize: cfg.Summarize}
}

// commandTable lists every recognized command's required permission, for
// /help and for the "denied, not a fall-through" check.
var commandTable = map[string]model.PermissionLevel{
	"help":      model.PermissionPublic,
	"context":   model.PermissionPublic,
	"summarize": model.PermissionPublic,
	"forget":    model.PermissionOperator,
	"jobs":      model.PermissionTrusted,
	"sudo":      model.PermissionPublic, // "sudo approve" re-checks ADMIN itself
	"memory":    model.PermissionPublic, // "memory clear" re-checks ADMIN itself
	"pause":     model.PermissionOperator,
	"resume":    model.PermissionOperator,
	"status":    model.PermissionPublic,
}

// Parse splits "/name arg1 arg2" into an Invocation. content must begin
// with "/"; callers check that before calling Parse.
func Parse(platform, channel, userID string, level model.PermissionLevel, content string) Invocation {
	fields := strings.Fields(strings.TrimPrefix(content, "/"))
	inv := Invocation{Platform: platform, Channel: channel, UserID: userID, Level: level}
	if len(fields) == 0 {
		return inv
	}
	inv.Name = strings.ToLower(fields[0])
	inv.Args = fields[1:]
	return inv
}

// Handle dispatches inv and returns the reply text. An unrecognized
// command or a permission denial both produce a short explanatory reply
// rather than an error — the pipeline always has something to send back.
func (h *Handler) Handle(ctx context.Context, inv Invocation) string {
	required, known := commandTable[inv.Name]
	if !known {
		return fmt.Sprintf("Unknown command /%s. Try /help.", inv.Name)
	}
	if inv.Level < required {
		return fmt.Sprintf("/%s requires %s permission.", inv.Name, required)
	}

	switch inv.Name {
	case "help":
		return h.help()
	case "context":
		return h.context(ctx, inv)
	case "summarize":
		return h.forceSummarize(ctx, inv)
	case "forget":
		return h.forget(ctx, inv)
	case "jobs":
		return h.listJobs()
	case "sudo":
		return h.sudo(inv)
	case "memory":
		return h.memoryCmd(ctx, inv)
	case "pause":
		return h.pauseCmd(inv)
	case "resume":
		return h.resumeCmd()
	case "status":
		return h.status()
	default:
		return fmt.Sprintf("Unknown command /%s. Try /help.", inv.Name)
	}
}

func (h *Handler) help() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	b.WriteString("/help - list commands\n")
	b.WriteString("/context - show message count and size\n")
	b.WriteString("/summarize - force-summarize the current channel\n")
	b.WriteString("/forget - clear the current channel's context (operator)\n")
	b.WriteString("/jobs - list scheduled cron jobs (trusted)\n")
	b.WriteString("/sudo <level> | /sudo approve <id> - escalation protocol\n")
	b.WriteString("/memory | /memory search <q> | /memory clear - memory introspection\n")
	b.WriteString("/pause [duration] - pause autonomous behaviors (operator)\n")
	b.WriteString("/resume - resume, reporting missed events (operator)\n")
	b.WriteString("/status - report paused/active and queued count\n")
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handler) context(ctx context.Context, inv Invocation) string {
	stats, err := h.ctx.Stats(ctx, inv.Platform, inv.Channel)
	if err != nil {
		return "Could not read context stats: " + err.Error()
	}
	return fmt.Sprintf("%d messages, ~%d tokens stored for this channel.", stats.MessageCount, stats.TotalTokens)
}

func (h *Handler) forceSummarize(ctx context.Context, inv Invocation) string {
	if h.summarize == nil {
		return "Summarization is not configured."
	}
	if err := h.summarize(ctx, inv.Platform, inv.Channel); err != nil {
		return "Summarization failed: " + err.Error()
	}
	return "Channel context summarized."
}

func (h *Handler) forget(ctx context.Context, inv Invocation) string {
	if err := h.ctx.Clear(ctx, inv.Platform, inv.Channel); err != nil {
		return "Could not clear context: " + err.Error()
	}
	return "Context cleared for this channel."
}

func (h *Handler) listJobs() string {
	if h.jobs == nil {
		return "No scheduler configured."
	}
	ids := h.jobs.ListJobIDs()
	if len(ids) == 0 {
		return "No scheduled jobs."
	}
	return "Scheduled jobs: " + strings.Join(ids, ", ")
}

func (h *Handler) sudo(inv Invocation) string {
	if len(inv.Args) == 0 {
		return "Usage: /sudo <level> or /sudo approve <id>"
	}
	if inv.Args[0] == "approve" || inv.Args[0] == "deny" {
		if len(inv.Args) < 2 {
			return "Usage: /sudo approve <id>"
		}
		if inv.Args[0] == "approve" {
			token, err := h.auth.ApproveSudo(inv.Args[1], inv.Level)
			if err != nil {
				return "Could not process escalation: " + err.Error()
			}
			if token != "" {
				return "Escalation approved. Audit token: " + token
			}
			return "Escalation approved."
		}
		if err := h.auth.DenySudo(inv.Args[1], inv.Level); err != nil {
			return "Could not process escalation: " + err.Error()
		}
		return "Escalation denied."
	}

	target, ok := model.ParsePermissionLevel(strings.ToLower(inv.Args[0]))
	if !ok {
		return "Unknown permission level. Use public, trusted, operator, or admin."
	}
	id := h.auth.RequestSudo(inv.Platform, inv.UserID, target)
	return fmt.Sprintf("Escalation requested (id %s). An admin must run /sudo approve %s.", id, id)
}

func (h *Handler) memoryCmd(ctx context.Context, inv Invocation) string {
	if len(inv.Args) == 0 {
		entries, err := h.mem.List(ctx, "")
		if err != nil {
			return "Could not read memory: " + err.Error()
		}
		return renderEntries(entries)
	}
	switch inv.Args[0] {
	case "search":
		query := strings.Join(inv.Args[1:], " ")
		entries, err := h.mem.Search(ctx, query)
		if err != nil {
			return "Search failed: " + err.Error()
		}
		return renderEntries(entries)
	case "clear":
		if inv.Level < model.PermissionAdmin {
			return "/memory clear requires admin permission."
		}
		entries, err := h.mem.Export(ctx)
		if err != nil {
			return "Could not clear memory: " + err.Error()
		}
		for _, e := range entries {
			_ = h.mem.Delete(ctx, e.Key)
		}
		return fmt.Sprintf("Cleared %d memory entries.", len(entries))
	default:
		return "Usage: /memory | /memory search <q> | /memory clear"
	}
}

func renderEntries(entries []model.MemoryEntry) string {
	if len(entries) == 0 {
		return "No matching memory entries."
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Category, e.Key, e.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handler) pauseCmd(inv Invocation) string {
	duration := ""
	if len(inv.Args) > 0 {
		duration = inv.Args[0]
	}
	h.pause.Pause(duration)
	if duration == "" {
		return "Paused autonomous behaviors until /resume."
	}
	return "Paused autonomous behaviors for " + duration + "."
}

func (h *Handler) resumeCmd() string {
	drained := h.pause.Resume()
	return fmt.Sprintf("Resumed. %d queued event(s) processed.", len(drained))
}

func (h *Handler) status() string {
	if h.pause.IsPaused() {
		return fmt.Sprintf("Paused. %d event(s) queued.", h.pause.QueuedCount())
	}
	return "Active. 0 events queued."
}
