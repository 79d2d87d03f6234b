// Package pipeline implements MessageHandler.handle (spec §4.9): the
// per-inbound-message flow from rate-limit through LLM tool-use loop to
// outbound reply.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shannon-ai/shannon/internal/auth"
	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/command"
	"github.com/shannon-ai/shannon/internal/contextstore"
	"github.com/shannon-ai/shannon/internal/llm"
	"github.com/shannon-ai/shannon/internal/memory"
	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/prompt"
	"github.com/shannon-ai/shannon/internal/tools"
)

// Pipeline wires the core's collaborators into the single inbound
// message flow described in spec §4.9. One Pipeline instance is shared
// across all incoming messages; it holds no per-message state.
type Pipeline struct {
	bus      *bus.Bus
	auth     *auth.Manager
	cmds     *command.Handler
	ctx      contextstore.Store
	mem      memory.Store
	registry *tools.Registry
	provider llm.Provider
	summarizer contextstore.Summarizer

	model       string
	maxTokens   int
	temperature float32

	maxMessages         int
	summarizeThreshold  float64
	contextWindowTokens int
	memoryMaxTokens     int

	// DryRun short-circuits the tool-use loop with a stub reply, for
	// testing (spec §4.9's final sentence).
	DryRun bool

	logger *slog.Logger
}

// Config wires a Pipeline's collaborators and tunables.
type Config struct {
	Bus      *bus.Bus
	Auth     *auth.Manager
	Commands *command.Handler
	Context  contextstore.Store
	Memory   memory.Store
	Registry *tools.Registry
	Provider llm.Provider
	Summarizer contextstore.Summarizer

	Model       string
	MaxTokens   int
	Temperature float32

	MaxMessages         int
	SummarizeThreshold  float64
	ContextWindowTokens int
	MemoryMaxTokens     int

	DryRun bool
	Logger *slog.Logger
}

// New constructs a Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		bus:                 cfg.Bus,
		auth:                cfg.Auth,
		cmds:                cfg.Commands,
		ctx:                 cfg.Context,
		mem:                 cfg.Memory,
		registry:            cfg.Registry,
		provider:            cfg.Provider,
		summarizer:          cfg.Summarizer,
		model:               cfg.Model,
		maxTokens:           cfg.MaxTokens,
		temperature:         cfg.Temperature,
		maxMessages:         cfg.MaxMessages,
		summarizeThreshold:  cfg.SummarizeThreshold,
		contextWindowTokens: cfg.ContextWindowTokens,
		memoryMaxTokens:     cfg.MemoryMaxTokens,
		DryRun:              cfg.DryRun,
		logger:              logger,
	}
}

// Handle runs one inbound message end-to-end per spec §4.9. It never
// returns an error to the caller for ordinary user-visible failures
// (rate limit, permission denial, provider error) — those become a
// published OutgoingMessage instead, per §7's propagation policy. It
// returns an error only for a PersistenceError on the user-turn append,
// which aborts the turn per §7.
func (p *Pipeline) Handle(ctx context.Context, in model.IncomingMessage) error {
	// Step 1: rate limit.
	if !p.auth.CheckRateLimit(in.Platform, in.UserID) {
		p.reply(in, "You're sending messages too quickly. Please wait a moment.")
		return nil
	}

	// Step 2: command dispatch.
	if strings.HasPrefix(strings.TrimSpace(in.Content), "/") {
		level := p.auth.EffectivePermission(in.Platform, in.UserID)
		inv := command.Parse(in.Platform, in.Channel, in.UserID, level, in.Content)
		reply := p.cmds.Handle(ctx, inv)
		p.reply(in, reply)
		return nil
	}

	// Step 3: effective permission (public users may still chat).
	level := p.auth.EffectivePermission(in.Platform, in.UserID)

	// Step 4: load context, summarizing if the projected prompt would
	// exceed the configured budget.
	if p.summarizer != nil {
		if _, err := p.ctx.MaybeSummarize(ctx, in.Platform, in.Channel, p.maxMessages, p.summarizeThreshold, p.contextWindowTokens, p.summarizer); err != nil {
			p.logger.Warn("context summarization failed", "platform", in.Platform, "channel", in.Channel, "error", err)
		}
	}

	// Step 5: build tool list, memory export, system prompt.
	available := p.registry.FilterByPermission(level)
	memExport, err := memory.ExportContext(ctx, p.mem, p.memoryMaxTokens)
	if err != nil {
		p.logger.Warn("memory export failed", "error", err)
	}
	descriptors := make([]prompt.ToolDescriptor, len(available))
	for i, t := range available {
		descriptors[i] = prompt.ToolDescriptor{Name: t.Name(), Description: t.Description()}
	}
	systemPrompt := prompt.Build(descriptors, memExport)

	// Step 6: append the user turn immediately.
	if _, err := p.ctx.Append(ctx, model.ContextMessage{
		Platform:      in.Platform,
		Channel:       in.Channel,
		Role:          model.RoleUser,
		Content:       in.Content,
		Timestamp:     timeNow().Unix(),
		TokenEstimate: p.provider.CountTokens(in.Content),
	}); err != nil {
		return fmt.Errorf("pipeline: persist user turn: %w", err)
	}

	if p.DryRun {
		p.reply(in, "[dry-run] would have invoked the LLM")
		return nil
	}

	history, err := p.ctx.Get(ctx, in.Platform, in.Channel, p.maxMessages)
	if err != nil {
		p.logger.Error("failed to load context", "error", err)
		p.reply(in, "Sorry, something went wrong loading our conversation. Please try again.")
		return nil
	}
	messages := toLLMMessages(history)

	// Step 7: invoke the tool-use loop.
	toolSpecs := make([]tools.ToolSpecOf, len(available))
	for i, t := range available {
		toolSpecs[i] = t
	}
	executor := tools.NewExecutor(p.provider, p.registry, p.logger)

	runCtx := ctx
	reply, err := executor.Run(runCtx, systemPrompt, messages, toolSpecs, level, p.maxTokens, p.temperature)
	if err != nil {
		p.logger.Error("provider error", "error", err)
		p.reply(in, "Sorry, I hit an error talking to the model. Your message is saved — please try again.")
		return nil
	}

	// Step 8: persist the assistant turn.
	if _, err := p.ctx.Append(ctx, model.ContextMessage{
		Platform:      in.Platform,
		Channel:       in.Channel,
		Role:          model.RoleAssistant,
		Content:       reply,
		Timestamp:     timeNow().Unix(),
		TokenEstimate: p.provider.CountTokens(reply),
	}); err != nil {
		p.logger.Error("failed to persist assistant turn", "error", err)
	}

	// Step 9: publish the reply.
	p.reply(in, reply)
	return nil
}

func (p *Pipeline) reply(in model.IncomingMessage, content string) {
	p.bus.Publish(bus.Event{
		Type: bus.EventMessageOutgoing,
		MessageOutgoing: &model.OutgoingMessage{
			Platform: in.Platform,
			Channel:  in.Channel,
			Content:  content,
		},
	})
}

func toLLMMessages(history []model.ContextMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

var timeNow = func() time.Time { return time.Now() }
