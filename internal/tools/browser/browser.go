// Package browser implements a reference Tool wrapping playwright-go for
// page navigation and screenshot capture, trimmed from the teacher's
// much larger browser automation tool (internal/tools/browser/browser.go,
// internal/tools/browser/pool.go) down to the navigate/screenshot subset
// spec §4.16 calls for.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/shannon-ai/shannon/internal/model"
	"github.com/shannon-ai/shannon/internal/tools"
)

// Tool drives a single headless Chromium instance, lazily started on
// first use and torn down by Cleanup. It requires OPERATOR.
type Tool struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

// New constructs an unstarted browser Tool; the underlying browser
// process is launched lazily on the first Execute call.
func New() *Tool {
	return &Tool{}
}

func (t *Tool) Name() string { return "browser" }

func (t *Tool) Description() string {
	return "Navigate a headless browser to a URL or capture a screenshot of the current page."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{"type": "string", "enum": []any{"navigate", "screenshot"}},
			"url":    map[string]any{"type": "string", "description": "URL to navigate to (required for navigate)."},
		},
		"required": []any{"action"},
	}
}

func (t *Tool) RequiredPermission() model.PermissionLevel { return model.PermissionOperator }

func (t *Tool) ensureStarted() error {
	if t.page != nil {
		return nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("browser: start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(true)})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("browser: launch chromium: %w", err)
	}
	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("browser: new page: %w", err)
	}
	t.pw, t.browser, t.page = pw, browser, page
	return nil
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	action, _ := args["action"].(string)
	if err := t.ensureStarted(); err != nil {
		return tools.Result{Success: false, Error: err.Error()}, nil
	}

	switch action {
	case "navigate":
		url, _ := args["url"].(string)
		if url == "" {
			return tools.Result{Success: false, Error: "browser: \"url\" is required for navigate"}, nil
		}
		if _, err := t.page.Goto(url); err != nil {
			return tools.Result{Success: false, Error: err.Error()}, nil
		}
		return tools.Result{Success: true, Output: fmt.Sprintf("navigated to %s (title: %s)", url, mustTitle(t.page))}, nil
	case "screenshot":
		data, err := t.page.Screenshot()
		if err != nil {
			return tools.Result{Success: false, Error: err.Error()}, nil
		}
		return tools.Result{Success: true, Output: base64.StdEncoding.EncodeToString(data)}, nil
	default:
		return tools.Result{Success: false, Error: fmt.Sprintf("browser: unknown action %q", action)}, nil
	}
}

func mustTitle(p playwright.Page) string {
	title, err := p.Title()
	if err != nil {
		return ""
	}
	return title
}

// Cleanup closes the page, browser, and playwright driver, in that order.
func (t *Tool) Cleanup() error {
	if t.page != nil {
		t.page.Close()
	}
	if t.browser != nil {
		if err := t.browser.Close(); err != nil {
			return fmt.Errorf("browser: close: %w", err)
		}
	}
	if t.pw != nil {
		return t.pw.Stop()
	}
	return nil
}
