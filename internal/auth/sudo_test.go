package auth

import (
	"testing"
	"time"

	"github.com/shannon-ai/shannon/internal/model"
)

func TestRequestSudoExtendsActiveEscalation(t *testing.T) {
	m := NewSudoManager(time.Minute, "")
	id := m.RequestSudo("discord", "u1", model.PermissionOperator)
	if _, err := m.ApproveSudo(id, model.PermissionAdmin); err != nil {
		t.Fatalf("ApproveSudo: %v", err)
	}

	level, ok := m.EffectiveEscalation("discord", "u1")
	if !ok || level != model.PermissionOperator {
		t.Fatalf("expected active operator escalation, got level=%v ok=%v", level, ok)
	}
	firstExpiry := m.escalations[escalationKey("discord", "u1")].expiresAt

	time.Sleep(10 * time.Millisecond)
	m.RequestSudo("discord", "u1", model.PermissionOperator)

	extended := m.escalations[escalationKey("discord", "u1")].expiresAt
	if !extended.After(firstExpiry) {
		t.Fatalf("expected re-request to extend expiresAt, got first=%v extended=%v", firstExpiry, extended)
	}
	if level, ok := m.EffectiveEscalation("discord", "u1"); !ok || level != model.PermissionOperator {
		t.Fatalf("expected escalation to remain active after extension, got level=%v ok=%v", level, ok)
	}
}

func TestRequestSudoWithoutActiveEscalationDoesNotCreateOne(t *testing.T) {
	m := NewSudoManager(time.Minute, "")
	m.RequestSudo("discord", "u1", model.PermissionOperator)
	if _, ok := m.EffectiveEscalation("discord", "u1"); ok {
		t.Fatalf("expected no active escalation from a bare request")
	}
}
