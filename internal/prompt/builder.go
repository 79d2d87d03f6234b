// Package prompt assembles the system prompt the tool-use loop sends to
// the LLM: a fixed base prompt, one line per permission-filtered tool,
// and the memory export block.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// ToolDescriptor is the minimal view Build needs of an available tool.
type ToolDescriptor struct {
	Name        string
	Description string
}

const basePrompt = `You are Shannon, an LLM-driven assistant operating inside a chat
platform. You can converse normally and, where a tool is listed below,
invoke it to take action on the user's behalf. Only use a tool when it
is listed — tools not listed are not available to this user. Be concise
and factual; do not fabricate tool output.`

// Build composes the system prompt deterministically for a given
// (tools, memoryExport) pair (spec §4.7). Tools are rendered in
// name-sorted order so the prompt is stable across calls with the same
// permission-filtered set.
func Build(tools []ToolDescriptor, memoryExport string) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if len(tools) > 0 {
		sorted := make([]ToolDescriptor, len(tools))
		copy(sorted, tools)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

		b.WriteString("\n\nAvailable tools:\n")
		for _, t := range sorted {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	}

	if strings.TrimSpace(memoryExport) != "" {
		b.WriteString("\nCurrent Memory:\n")
		b.WriteString(memoryExport)
	}

	return strings.TrimRight(b.String(), "\n")
}
