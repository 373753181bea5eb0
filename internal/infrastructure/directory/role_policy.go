package directory

import (
	"strings"

	"github.com/disposisi/backend/internal/domain/routing"
)

// RolePolicy lets an actor forward only when their role is listed. Roles
// compare case-insensitively. An empty list allows everyone.
func RolePolicy(roles []string) routing.ForwardPolicy {
	if len(roles) == 0 {
		return routing.AllowAllForwards
	}
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return routing.ForwardPolicyFunc(func(actor routing.Actor) bool {
		_, ok := allowed[strings.ToLower(actor.Role)]
		return ok
	})
}
