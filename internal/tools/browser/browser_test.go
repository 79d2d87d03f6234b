package browser

import (
	"context"
	"testing"

	"github.com/shannon-ai/shannon/internal/model"
)

func requirePlaywright(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode (requires installed chromium)")
	}
}

func TestNavigateAndScreenshot(t *testing.T) {
	requirePlaywright(t)
	tool := New()
	defer tool.Cleanup()

	result, err := tool.Execute(context.Background(), map[string]any{"action": "navigate", "url": "about:blank"})
	if err != nil {
		t.Fatalf("Execute navigate: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected navigate success, got error %q", result.Error)
	}

	result, err = tool.Execute(context.Background(), map[string]any{"action": "screenshot"})
	if err != nil {
		t.Fatalf("Execute screenshot: %v", err)
	}
	if !result.Success || result.Output == "" {
		t.Fatalf("expected non-empty screenshot output, got %+v", result)
	}
}

func TestUnknownActionFails(t *testing.T) {
	requirePlaywright(t)
	tool := New()
	defer tool.Cleanup()

	result, err := tool.Execute(context.Background(), map[string]any{"action": "dance"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for unknown action")
	}
}

func TestRequiredPermissionIsOperator(t *testing.T) {
	tool := New()
	if tool.RequiredPermission() != model.PermissionOperator {
		t.Fatalf("expected operator permission, got %v", tool.RequiredPermission())
	}
}
