package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Capability string

const (
	CapUsersRead    Capability = "users:read"
	CapUsersWrite   Capability = "users:write"
	CapProfileWrite Capability = "profile:write"
)

var roleCapabilities = map[Role][]Capability{
	RoleUser:  {CapProfileWrite},
	RoleAdmin: {CapProfileWrite, CapUsersRead, CapUsersWrite},
}

// Roles lists every known role in ascending privilege order.
func Roles() []Role {
	return []Role{RoleUser, RoleAdmin}
}

func ParseRole(v string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(v)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q, expected one of %v", v, Roles())
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

func (r Role) Allowed(roles ...Role) bool {
	for _, allowed := range roles {
		if r == allowed {
			return true
		}
	}
	return false
}

func (r Role) Can(c Capability) bool {
	for _, have := range roleCapabilities[r] {
		if have == c {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
