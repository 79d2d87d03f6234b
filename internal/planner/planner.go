// Package planner implements multi-step goal decomposition and execution
// (spec §4.11): an LLM proposes a bounded step list for a goal, each step
// runs as either a tool invocation or a pure reasoning turn, and a
// failure in any step triggers an LLM-adjudicated retry/skip/abort
// decision before the plan proceeds.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/llm"
	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/tools"
)

// MaxSteps bounds the number of steps an LLM may propose for one plan.
const MaxSteps = 8

// MaxToolInvocations bounds the total number of tool calls a single plan
// may make across all of its steps, including retries.
const MaxToolInvocations = 15

// planSchema constrains create_plan's structured decomposition response.
var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"steps": map[string]any{
			"type":     "array",
			"minItems": 1,
			"maxItems": MaxSteps,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]any{"type": "string"},
					"tool":        map[string]any{"type": "string"},
					"parameters":  map[string]any{"type": "object"},
				},
				"required": []any{"description"},
			},
		},
	},
	"required": []any{"steps"},
}

// failureSchema constrains handle_failure's adjudication response.
var failureSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"action": map[string]any{"type": "string", "enum": []any{"retry", "skip", "abort"}},
		"reason": map[string]any{"type": "string"},
	},
	"required": []any{"action"},
}

type proposedStep struct {
	Description string         `json:"description"`
	Tool        string         `json:"tool,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type proposedPlan struct {
	Steps []proposedStep `json:"steps"`
}

type adjudication struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Planner creates and executes Plans. A single Planner is shared across
// all plan activity in a process.
type Planner struct {
	provider llm.Provider
	registry *tools.Registry
	store    *Store
	bus      *bus.Bus
	model    string
	logger   *slog.Logger
}

// Config wires a Planner's collaborators.
type Config struct {
	Provider llm.Provider
	Registry *tools.Registry
	Store    *Store
	Bus      *bus.Bus
	Model    string
	Logger   *slog.Logger
}

// New constructs a Planner. Per spec §9's cyclic-wiring note, Registry
// may still be missing the "plan" tool at construction time — the
// composition root registers it afterward once the Planner exists.
func New(cfg Config) *Planner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		provider: cfg.Provider,
		registry: cfg.Registry,
		store:    cfg.Store,
		bus:      cfg.Bus,
		model:    cfg.Model,
		logger:   logger,
	}
}

// CreatePlan decomposes goal into at most MaxSteps steps via the
// provider, persists the plan in "planning" status, and returns it.
// A step naming a tool without parameters is rejected (spec §4.11's
// validation rule) by asking the provider to retry once before failing.
func (p *Planner) CreatePlan(ctx context.Context, channel, goal string) (model.Plan, error) {
	system := "You decompose a goal into a short ordered list of concrete steps. " +
		"Each step is either a tool invocation (set \"tool\" and \"parameters\") or a reasoning-only " +
		"step (omit \"tool\"). Never propose a tool step without parameters. " +
		fmt.Sprintf("Propose at most %d steps.", MaxSteps)

	available := p.registry.All()
	specs := make([]llm.ToolSpec, len(available))
	for i, t := range available {
		specs[i] = llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
	}

	var proposed proposedPlan
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := p.provider.Complete(ctx, llm.Request{
			Model:  p.model,
			System: system,
			Messages: []llm.Message{{
				Role:    "user",
				Content: fmt.Sprintf("Goal: %s\n\nRespond with JSON matching this schema: %s", goal, mustJSON(planSchema)),
			}},
		})
		if err != nil {
			return model.Plan{}, fmt.Errorf("planner: create plan: %w", err)
		}
		if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &proposed); err != nil {
			return model.Plan{}, fmt.Errorf("planner: parse plan response: %w", err)
		}
		if len(proposed.Steps) > MaxSteps {
			proposed.Steps = proposed.Steps[:MaxSteps]
		}
		if validSteps(proposed.Steps) {
			break
		}
		if attempt == 1 {
			return model.Plan{}, fmt.Errorf("planner: provider proposed a tool step with no parameters after retry")
		}
		system += " Every step with a \"tool\" MUST also include non-empty \"parameters\"."
	}

	steps := make([]model.PlanStep, len(proposed.Steps))
	for i, s := range proposed.Steps {
		steps[i] = model.PlanStep{
			ID:          i + 1,
			Description: s.Description,
			Tool:        s.Tool,
			Parameters:  s.Parameters,
			Status:      model.StepPending,
		}
	}

	now := time.Now()
	plan := model.Plan{
		ID:        uuid.NewString(),
		Goal:      goal,
		Steps:     steps,
		Status:    model.PlanPlanning,
		Channel:   channel,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.store != nil {
		if err := p.store.Upsert(ctx, plan); err != nil {
			return model.Plan{}, err
		}
	}
	return plan, nil
}

func validSteps(steps []proposedStep) bool {
	for _, s := range steps {
		if s.Tool != "" && len(s.Parameters) == 0 {
			return false
		}
	}
	return true
}

// Execute runs plan's steps in order, persisting progress after each
// step and publishing a progress message to plan.Channel. A failed step
// triggers handleFailure for an LLM-adjudicated retry/skip/abort
// decision; the whole plan aborts once MaxToolInvocations is reached.
func (p *Planner) Execute(ctx context.Context, plan model.Plan) model.Plan {
	plan.Status = model.PlanExecuting
	p.persist(ctx, plan)

	toolInvocations := 0
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.Status == model.StepDone || step.Status == model.StepSkipped {
			continue
		}

		retries := 0
		for {
			if step.Tool != "" && toolInvocations >= MaxToolInvocations {
				step.Status = model.StepFailed
				step.Error = "plan-wide tool invocation limit reached"
				plan.Status = model.PlanFailed
				p.persist(ctx, plan)
				p.progress(plan, fmt.Sprintf("Plan aborted: tool invocation limit (%d) reached at step %d.", MaxToolInvocations, step.ID))
				return plan
			}

			step.Status = model.StepRunning
			p.progress(plan, fmt.Sprintf("Step %d/%d: %s", step.ID, len(plan.Steps), step.Description))

			var err error
			if step.Tool != "" {
				toolInvocations++
				err = p.runToolStep(ctx, step)
			} else {
				err = p.runReasoningStep(ctx, plan.Goal, step)
			}
			if err == nil {
				step.Status = model.StepDone
				p.persist(ctx, plan)
				break
			}

			step.Error = err.Error()
			action := p.handleFailure(ctx, plan, *step)
			if action == "retry" && retries >= 1 {
				// Retry once at most (spec §4.11); a second failure
				// falls through to skip rather than abort, since the
				// adjudicator already asked for a retry once.
				action = "skip"
			}
			switch action {
			case "retry":
				retries++
				p.progress(plan, fmt.Sprintf("Step %d failed, retrying: %v", step.ID, err))
				continue
			case "skip":
				step.Status = model.StepSkipped
				p.persist(ctx, plan)
				p.progress(plan, fmt.Sprintf("Step %d failed, skipping: %v", step.ID, err))
			default: // abort
				step.Status = model.StepFailed
				plan.Status = model.PlanFailed
				p.persist(ctx, plan)
				p.progress(plan, fmt.Sprintf("Plan aborted at step %d: %v", step.ID, err))
				return plan
			}
			break
		}
	}

	plan.Status = model.PlanCompleted
	p.persist(ctx, plan)
	p.progress(plan, "Plan completed.")
	return plan
}

func (p *Planner) runToolStep(ctx context.Context, step *model.PlanStep) error {
	t, ok := p.registry.Get(step.Tool)
	if !ok {
		return fmt.Errorf("unknown tool %q", step.Tool)
	}
	if err := tools.ValidateArguments(t, step.Parameters); err != nil {
		return err
	}
	result, err := t.Execute(ctx, step.Parameters)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	step.Result = result.Output
	return nil
}

func (p *Planner) runReasoningStep(ctx context.Context, goal string, step *model.PlanStep) error {
	resp, err := p.provider.Complete(ctx, llm.Request{
		Model:  p.model,
		System: "You are executing one reasoning step of a larger plan. Respond with the step's outcome only.",
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Goal: %s\nStep: %s", goal, step.Description),
		}},
	})
	if err != nil {
		return err
	}
	step.Result = resp.Text
	return nil
}

// handleFailure asks the provider to adjudicate a failed step, defaulting
// to "skip" if the provider is unreachable or its response doesn't parse
// (spec §4.11): a single step's adjudication failing should not abort an
// otherwise-recoverable plan.
func (p *Planner) handleFailure(ctx context.Context, plan model.Plan, step model.PlanStep) string {
	resp, err := p.provider.Complete(ctx, llm.Request{
		Model:  p.model,
		System: "A plan step failed. Decide whether to retry, skip, or abort the plan. Respond with JSON matching: " + mustJSON(failureSchema),
		Messages: []llm.Message{{
			Role: "user",
			Content: fmt.Sprintf("Goal: %s\nStep %d: %s\nError: %s", plan.Goal, step.ID, step.Description, step.Error),
		}},
	})
	if err != nil {
		p.logger.Warn("planner: failure adjudication call failed, skipping step", "error", err)
		return "skip"
	}
	var a adjudication
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &a); err != nil {
		p.logger.Warn("planner: failure adjudication response unparseable, skipping step", "error", err)
		return "skip"
	}
	switch a.Action {
	case "retry", "skip", "abort":
		return a.Action
	default:
		return "skip"
	}
}

func (p *Planner) persist(ctx context.Context, plan model.Plan) {
	if p.store == nil {
		return
	}
	plan.UpdatedAt = time.Now()
	if err := p.store.Upsert(ctx, plan); err != nil {
		p.logger.Error("planner: persist failed", "plan_id", plan.ID, "error", err)
	}
}

func (p *Planner) progress(plan model.Plan, content string) {
	if p.bus == nil {
		return
	}
	channel := plan.Channel
	p.bus.Publish(bus.Event{
		Type: bus.EventMessageOutgoing,
		MessageOutgoing: &model.OutgoingMessage{
			Channel: channel,
			Content: content,
		},
	})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// extractJSON strips any leading/trailing prose a model adds around a
// JSON object, returning the first balanced {...} span found.
func extractJSON(s string) string {
	start := -1
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}
