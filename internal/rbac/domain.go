package rbac

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/bootboard/bootboard/internal/auth"
)

type accessKind int

const (
	accessAuthenticated accessKind = iota
	accessPublic
	accessRole
)

// Access is the requirement a route places on the caller.
type Access struct {
	kind accessKind
	role auth.Role
}

var (
	// Public routes need no identity.
	Public = Access{kind: accessPublic}
	// Authenticated routes need a valid token of any role.
	Authenticated = Access{kind: accessAuthenticated}
)

// RoleRequired routes need a valid token whose resolved role equals role.
func RoleRequired(role auth.Role) Access {
	return Access{kind: accessRole, role: role}
}

// IsPublic reports whether the access needs no identity.
func (a Access) IsPublic() bool { return a.kind == accessPublic }

// Role returns the required role, if any.
func (a Access) Role() (auth.Role, bool) {
	return a.role, a.kind == accessRole
}

func (a Access) String() string {
	switch a.kind {
	case accessPublic:
		return "public"
	case accessRole:
		return fmt.Sprintf("role(%s)", a.role)
	default:
		return "authenticated"
	}
}

// Rule maps a route pattern to an access requirement. An empty Method
// matches every method. Patterns are slash separated; "*" matches one
// segment and a trailing "/**" matches the prefix and everything below it.
type Rule struct {
	Method  string
	Pattern string
	Access  Access
}

// Matches reports whether the rule covers method and urlPath.
func (r Rule) Matches(method, urlPath string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return matchPattern(r.Pattern, urlPath)
}

func matchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		if prefix == "" {
			return true
		}
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
		return false
	}
	ok, err := path.Match(pattern, urlPath)
	return err == nil && ok
}

// DefaultRules is the route table of the board API, in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/healthz", Access: Public},
		{Method: http.MethodGet, Pattern: "/metrics", Access: Public},
		{Pattern: "/api/auth/**", Access: Public},
		{Method: http.MethodGet, Pattern: "/uploads/**", Access: Public},
		{Pattern: "/api/files/upload/**", Access: Authenticated},
		{Method: http.MethodGet, Pattern: "/api/files/**", Access: Public},
		{Pattern: "/api/admin/**", Access: RoleRequired(auth.RoleAdmin)},
	}
}

// IsPreflight reports whether r is a cross-origin negotiation request.
func IsPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions
}
