package auth

import (
	"testing"

	"github.com/shannon-ai/shannon/internal/model"
)

func TestEffectivePermissionBareEntryMatchesAnyPlatform(t *testing.T) {
	lists := Lists{Operator: []string{"webhook-bridge"}}
	if got := lists.EffectivePermission("discord", "webhook-bridge"); got != model.PermissionOperator {
		t.Fatalf("expected operator for bare-entry match on discord, got %s", got)
	}
	if got := lists.EffectivePermission("slack", "webhook-bridge"); got != model.PermissionOperator {
		t.Fatalf("expected operator for bare-entry match on slack, got %s", got)
	}
	if got := lists.EffectivePermission("discord", "someone-else"); got != model.PermissionPublic {
		t.Fatalf("expected public for non-matching user, got %s", got)
	}
}
