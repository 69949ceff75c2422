package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the single capability tag carried by an identity.
type Role string

const (
	// RoleUser is granted at signup.
	RoleUser Role = "USER"
	// RoleAdmin may manage members.
	RoleAdmin Role = "ADMIN"
)

const authorityPrefix = "ROLE_"

// ErrUnknownRole is returned when parsing a role outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// Authority returns the authority string, e.g. ROLE_ADMIN.
func (r Role) Authority() string {
	return authorityPrefix + string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole accepts USER, ADMIN and their ROLE_ prefixed forms, case-insensitively.
func ParseRole(raw string) (Role, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, authorityPrefix)
	role := Role(v)
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Identity is a registered account.
type Identity struct {
	ID           int64     `json:"id"`
	Subject      string    `json:"username"`
	DisplayName  string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
