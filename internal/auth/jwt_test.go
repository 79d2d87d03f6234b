package auth

import (
	"testing"
	"time"

	"github.com/shannon-ai/shannon/internal/model"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	token, err := issuer.Issue("discord", "u1", model.PermissionOperator, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Platform != "discord" || claims.UserID != "u1" || claims.Level != model.PermissionOperator {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenIssuerRejectsTamperedToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	token, err := issuer.Issue("discord", "u1", model.PermissionOperator, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other := NewTokenIssuer("different-secret")
	if _, err := other.Validate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuerNoSecretConfigured(t *testing.T) {
	issuer := NewTokenIssuer("")
	if _, err := issuer.Issue("discord", "u1", model.PermissionOperator, time.Now().Add(time.Hour)); err != ErrNoJWTSecret {
		t.Fatalf("expected ErrNoJWTSecret, got %v", err)
	}
}

func TestApproveSudoIssuesTokenWhenSecretConfigured(t *testing.T) {
	m := NewSudoManager(time.Minute, "test-secret")
	id := m.RequestSudo("discord", "u1", model.PermissionOperator)
	token, err := m.ApproveSudo(id, model.PermissionAdmin)
	if err != nil {
		t.Fatalf("ApproveSudo: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty audit token")
	}
	got, ok := m.EscalationToken("discord", "u1")
	if !ok || got != token {
		t.Fatalf("EscalationToken mismatch: got=%q ok=%v want=%q", got, ok, token)
	}
}

func TestApproveSudoWithoutSecretReturnsNoToken(t *testing.T) {
	m := NewSudoManager(time.Minute, "")
	id := m.RequestSudo("discord", "u1", model.PermissionOperator)
	token, err := m.ApproveSudo(id, model.PermissionAdmin)
	if err != nil {
		t.Fatalf("ApproveSudo: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}
