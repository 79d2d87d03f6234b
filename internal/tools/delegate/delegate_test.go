package delegate

import (
	"context"
	"runtime"
	"testing"
)

func TestExecuteInvokesBinaryWithArgs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a posix binary")
	}
	tool := New("echo-delegate", "echo", t.TempDir())
	result, err := tool.Execute(context.Background(), map[string]any{"args": []any{"hello", "world"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Output != "hello world\n" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
}

func TestExecuteRejectsNonStringArgs(t *testing.T) {
	tool := New("echo-delegate", "echo", t.TempDir())
	result, err := tool.Execute(context.Background(), map[string]any{"args": []any{1, 2}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for non-string args")
	}
}
