package auth

import (
	"strings"

	"github.com/shannon-ai/shannon/internal/model"
)

// Lists holds the three configured trust lists. Entries are matched
// against either "platform:user_id" or a bare "user_id" (any platform);
// the first list that matches wins, walked admin -> operator -> trusted.
type Lists struct {
	Admin    []string
	Operator []string
	Trusted  []string
}

func matches(list []string, platform, userID string) bool {
	qualified := platform + ":" + userID
	for _, entry := range list {
		if entry == qualified || entry == userID {
			return true
		}
	}
	return false
}

// EffectivePermission walks admin -> operator -> trusted and returns the
// highest matching level, or PUBLIC if nothing matches.
func (l Lists) EffectivePermission(platform, userID string) model.PermissionLevel {
	platform = strings.ToLower(strings.TrimSpace(platform))
	userID = strings.TrimSpace(userID)
	switch {
	case matches(l.Admin, platform, userID):
		return model.PermissionAdmin
	case matches(l.Operator, platform, userID):
		return model.PermissionOperator
	case matches(l.Trusted, platform, userID):
		return model.PermissionTrusted
	default:
		return model.PermissionPublic
	}
}
