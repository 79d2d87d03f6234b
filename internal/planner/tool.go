package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/tools"
)

// PlanTool exposes Planner.CreatePlan + Execute as a callable "plan" tool
// (spec §9): registered into the tool registry after the Planner itself
// is constructed, since the Planner depends on the registry to resolve
// the tool steps it decomposes a goal into.
type PlanTool struct {
	planner *Planner
	channel string
}

// NewPlanTool wraps planner. channel is the "platform:channel" target
// progress messages are published to; callers that need per-invocation
// channel routing should construct one PlanTool per channel or thread it
// through Execute's args instead (kept simple here to match the rest of
// this core's per-channel tool wiring).
func NewPlanTool(planner *Planner, channel string) *PlanTool {
	return &PlanTool{planner: planner, channel: channel}
}

func (t *PlanTool) Name() string { return "plan" }

func (t *PlanTool) Description() string {
	return "Decompose a multi-step goal into a plan and execute it, reporting progress as each step completes."
}

func (t *PlanTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"goal": map[string]any{"type": "string", "description": "The goal to decompose and execute."},
		},
		"required": []any{"goal"},
	}
}

func (t *PlanTool) RequiredPermission() model.PermissionLevel { return model.PermissionTrusted }

func (t *PlanTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	goal, _ := args["goal"].(string)
	if strings.TrimSpace(goal) == "" {
		return tools.Result{Success: false, Error: "plan: \"goal\" is required"}, nil
	}

	plan, err := t.planner.CreatePlan(ctx, t.channel, goal)
	if err != nil {
		return tools.Result{Success: false, Error: fmt.Sprintf("plan: create: %v", err)}, nil
	}
	plan = t.planner.Execute(ctx, plan)

	var b strings.Builder
	fmt.Fprintf(&b, "Plan %q finished with status %s.\n", plan.ID, plan.Status)
	for _, s := range plan.Steps {
		fmt.Fprintf(&b, "- [%s] %s", s.Status, s.Description)
		if s.Error != "" {
			fmt.Fprintf(&b, " (error: %s)", s.Error)
		}
		b.WriteString("\n")
	}
	return tools.Result{Success: plan.Status == model.PlanCompleted, Output: strings.TrimRight(b.String(), "\n")}, nil
}

func (t *PlanTool) Cleanup() error { return nil }
