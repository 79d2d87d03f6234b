// Package auth implements permission lookup, rate limiting, and sudo
// escalation — the three concerns the pipeline checks before any LLM
// call is made.
package auth

import (
	"time"

	"github.com/shannon-ai/shannon/internal/model"
)

// Manager combines permission lookup, rate limiting, and sudo escalation
// behind one entry point used by the pipeline and the command handler.
type Manager struct {
	lists   Lists
	limiter *RateLimiter
	sudo    *SudoManager
}

// Config configures a Manager.
type Config struct {
	Lists              Lists
	RateLimitPerMinute int
	SudoTimeout        time.Duration
	// JWTSecret, if set, makes every granted sudo escalation also issue a
	// signed audit token (see SudoManager.EscalationToken).
	JWTSecret string
}

// NewManager constructs an auth Manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		lists:   cfg.Lists,
		limiter: NewRateLimiter(cfg.RateLimitPerMinute),
		sudo:    NewSudoManager(cfg.SudoTimeout, cfg.JWTSecret),
	}
}

// EffectivePermission returns the user's base permission level combined
// with any active sudo escalation, whichever is higher.
func (m *Manager) EffectivePermission(platform, userID string) model.PermissionLevel {
	base := m.lists.EffectivePermission(platform, userID)
	if elevated, ok := m.sudo.EffectiveEscalation(platform, userID); ok && elevated > base {
		return elevated
	}
	return base
}

// CheckRateLimit reports whether (platform, userID) may proceed.
func (m *Manager) CheckRateLimit(platform, userID string) bool {
	return m.limiter.Allow(platform, userID)
}

// RequestSudo starts an escalation request.
func (m *Manager) RequestSudo(platform, userID string, target model.PermissionLevel) string {
	return m.sudo.RequestSudo(platform, userID, target)
}

// ApproveSudo approves a pending request; approverLevel must be ADMIN.
// Returns the signed audit token for the grant, if a JWT secret is
// configured.
func (m *Manager) ApproveSudo(id string, approverLevel model.PermissionLevel) (string, error) {
	return m.sudo.ApproveSudo(id, approverLevel)
}

// DenySudo denies a pending request; approverLevel must be ADMIN.
func (m *Manager) DenySudo(id string, approverLevel model.PermissionLevel) error {
	return m.sudo.DenySudo(id, approverLevel)
}

// EscalationToken returns the signed audit token for (platform, userID)'s
// active escalation, if any.
func (m *Manager) EscalationToken(platform, userID string) (string, bool) {
	return m.sudo.EscalationToken(platform, userID)
}
