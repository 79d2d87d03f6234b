package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shannon-ai/shannon/internal/model"
)

// Sudo errors.
var (
	ErrNotFound         = errors.New("sudo: request not found")
	ErrPermissionDenied = errors.New("sudo: approval requires admin")
)

type sudoRequest struct {
	id          string
	platform    string
	userID      string
	targetLevel model.PermissionLevel
	approved    bool
}

type escalation struct {
	level     model.PermissionLevel
	expiresAt time.Time
	token     string // signed EscalationClaims, empty if no JWT secret configured
}

// SudoManager tracks pending escalation requests and active elevations.
// All state is process-local, matching the spec's single-process
// assumption.
type SudoManager struct {
	timeout time.Duration
	issuer  *TokenIssuer

	mu          sync.Mutex
	requests    map[string]*sudoRequest
	escalations map[string]escalation // key: "platform:user_id"
}

// NewSudoManager constructs a manager whose grants last timeout once
// approved. If jwtSecret is non-empty, every grant is also issued as a
// signed audit token (see EscalationToken).
func NewSudoManager(timeout time.Duration, jwtSecret string) *SudoManager {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &SudoManager{
		timeout:     timeout,
		issuer:      NewTokenIssuer(jwtSecret),
		requests:    make(map[string]*sudoRequest),
		escalations: make(map[string]escalation),
	}
}

func escalationKey(platform, userID string) string { return platform + ":" + userID }

// RequestSudo records a pending escalation request and returns its id.
// If (platform, userID) already holds an active, unexpired escalation,
// the re-request extends that grant's expiresAt by another full timeout
// (spec §4.2) rather than waiting for the new request to be approved.
func (m *SudoManager) RequestSudo(platform, userID string, target model.PermissionLevel) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := escalationKey(platform, userID)
	if esc, ok := m.escalations[key]; ok && time.Now().Before(esc.expiresAt) {
		esc.expiresAt = time.Now().Add(m.timeout)
		m.escalations[key] = esc
	}
	id := uuid.NewString()
	m.requests[id] = &sudoRequest{id: id, platform: platform, userID: userID, targetLevel: target}
	return id
}

// ApproveSudo grants the escalation named by id. Re-approving (or
// re-requesting) while a grant is active extends the window. Only an
// admin may call this; callers enforce that with approverLevel. Returns
// the signed audit token for the grant (empty if no JWT secret is
// configured).
func (m *SudoManager) ApproveSudo(id string, approverLevel model.PermissionLevel) (string, error) {
	if approverLevel < model.PermissionAdmin {
		return "", ErrPermissionDenied
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return "", ErrNotFound
	}
	req.approved = true
	expiresAt := time.Now().Add(m.timeout)
	token, err := m.issuer.Issue(req.platform, req.userID, req.targetLevel, expiresAt)
	if err != nil && !errors.Is(err, ErrNoJWTSecret) {
		return "", fmt.Errorf("sudo: issue escalation token: %w", err)
	}
	key := escalationKey(req.platform, req.userID)
	m.escalations[key] = escalation{level: req.targetLevel, expiresAt: expiresAt, token: token}
	return token, nil
}

// EscalationToken returns the signed audit token for (platform, userID)'s
// active escalation, if one exists and a JWT secret is configured. The
// second return value is false if there is no active escalation or no
// secret was configured.
func (m *SudoManager) EscalationToken(platform, userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escalations[escalationKey(platform, userID)]
	if !ok || esc.token == "" || time.Now().After(esc.expiresAt) {
		return "", false
	}
	return esc.token, true
}

// DenySudo rejects the escalation named by id.
func (m *SudoManager) DenySudo(id string, approverLevel model.PermissionLevel) error {
	if approverLevel < model.PermissionAdmin {
		return ErrPermissionDenied
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

// EffectiveEscalation returns the elevated level for (platform, userID)
// if an unexpired grant exists, or (PUBLIC, false). Expiry is silent:
// the caller simply falls back to the base permission level.
func (m *SudoManager) EffectiveEscalation(platform, userID string) (model.PermissionLevel, bool) {
	key := escalationKey(platform, userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escalations[key]
	if !ok {
		return model.PermissionPublic, false
	}
	if time.Now().After(esc.expiresAt) {
		delete(m.escalations, key)
		return model.PermissionPublic, false
	}
	return esc.level, true
}
