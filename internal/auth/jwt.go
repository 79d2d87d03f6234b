package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shannon-ai/shannon/internal/model"
)

// ErrNoJWTSecret is returned by TokenIssuer methods when no secret was
// configured; escalation tokens are an optional audit feature.
var ErrNoJWTSecret = errors.New("auth: jwt_secret not configured")

// ErrInvalidToken is returned when a token fails signature or claim
// validation.
var ErrInvalidToken = errors.New("auth: invalid escalation token")

// EscalationClaims records a granted sudo escalation in a verifiable,
// signed form, so an external system (an audit log shipper, a sibling
// process) can confirm a user's elevated level without querying this
// process's in-memory SudoManager state.
type EscalationClaims struct {
	Platform string               `json:"platform"`
	UserID   string               `json:"user_id"`
	Level    model.PermissionLevel `json:"level"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies EscalationClaims with HS256, mirroring
// the teacher's auth.JWTService.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer constructs a TokenIssuer. A zero-value secret disables
// issuance; callers should check ErrNoJWTSecret.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Issue signs an EscalationClaims token for the given grant, valid until
// expiresAt.
func (t *TokenIssuer) Issue(platform, userID string, level model.PermissionLevel, expiresAt time.Time) (string, error) {
	if t == nil || len(t.secret) == 0 {
		return "", ErrNoJWTSecret
	}
	claims := EscalationClaims{
		Platform: platform,
		UserID:   userID,
		Level:    level,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses and verifies a token previously issued by Issue.
func (t *TokenIssuer) Validate(token string) (*EscalationClaims, error) {
	if t == nil || len(t.secret) == 0 {
		return nil, ErrNoJWTSecret
	}
	parsed, err := jwt.ParseWithClaims(token, &EscalationClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*EscalationClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
