package shell

import (
	"context"
	"runtime"
	"testing"

	"github.com/shannon-ai/shannon/internal/model"
)

func TestExecuteRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	tool := New(t.TempDir())
	result, err := tool.Execute(context.Background(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Output != "hello\n" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
}

func TestExecuteReportsNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	tool := New(t.TempDir())
	result, err := tool.Execute(context.Background(), map[string]any{"command": "exit 1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure result")
	}
}

func TestMissingCommandErrors(t *testing.T) {
	tool := New(t.TempDir())
	result, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for missing command")
	}
}

func TestRequiredPermissionIsOperator(t *testing.T) {
	tool := New(t.TempDir())
	if tool.RequiredPermission() != model.PermissionOperator {
		t.Fatalf("expected operator permission, got %v", tool.RequiredPermission())
	}
}
