package prompt

import (
	"strings"
	"testing"
)

func TestBuildDeterministic(t *testing.T) {
	tools := []ToolDescriptor{{Name: "shell", Description: "run a command"}, {Name: "browser", Description: "browse the web"}}
	a := Build(tools, "[fact] favorite_color: blue")
	b := Build(tools, "[fact] favorite_color: blue")
	if a != b {
		t.Fatalf("expected deterministic output for identical inputs")
	}
	if !strings.Contains(a, "- browser: browse the web\n- shell: run a command") {
		t.Fatalf("expected name-sorted tool list, got %q", a)
	}
	if !strings.Contains(a, "Current Memory:") {
		t.Fatalf("expected memory block, got %q", a)
	}
}

func TestBuildOmitsEmptySections(t *testing.T) {
	out := Build(nil, "")
	if strings.Contains(out, "Available tools:") || strings.Contains(out, "Current Memory:") {
		t.Fatalf("expected empty sections to be omitted, got %q", out)
	}
}
