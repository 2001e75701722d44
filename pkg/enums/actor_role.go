package enums

import (
	"fmt"
	"strings"
)

// ActorRole is the caller role asserted by the gateway.
type ActorRole string

const (
	ActorRoleUser    ActorRole = "user"
	ActorRoleStaff   ActorRole = "staff"
	ActorRoleService ActorRole = "service"
)

func (r ActorRole) IsValid() bool {
	return r == ActorRoleUser || r == ActorRoleStaff || r == ActorRoleService
}

// IsPrivileged reports whether the role may call internal routes.
func (r ActorRole) IsPrivileged() bool {
	return r == ActorRoleStaff || r == ActorRoleService
}

func ParseActorRole(value string) (ActorRole, error) {
	r := ActorRole(strings.ToLower(strings.TrimSpace(value)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid actor role %q", value)
	}
	return r, nil
}
