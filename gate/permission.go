package gate

import (
	"fmt"
	"strings"
)

// Permission is an allowed action on a resource type, written "resource:action"
// (e.g. "application:review", "onboarding:upload").
type Permission string

const (
	// Wildcard stands for every resource or every action.
	Wildcard = "*"
	// PermissionAll grants everything.
	PermissionAll Permission = "*:*"
)

// NewPermission builds a permission from resource type and action.
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// ParsePermission validates s as "resource:action" with both parts non-empty.
func ParsePermission(s string) (Permission, error) {
	res, act, ok := strings.Cut(s, ":")
	if !ok || res == "" || act == "" {
		return "", fmt.Errorf("gate: malformed permission %q", s)
	}
	return Permission(s), nil
}

// Resource returns the resource part, or "" when malformed.
func (p Permission) Resource() string {
	res, _, ok := strings.Cut(string(p), ":")
	if !ok {
		return ""
	}
	return res
}

// Action returns the action part, or "" when malformed.
func (p Permission) Action() Action {
	_, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return ""
	}
	return Action(act)
}

// Matches reports whether p grants requested. "*:*" grants everything and
// "document:*" grants every document action.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionAll || p == requested {
		return true
	}
	if p.Resource() == "" || p.Resource() != requested.Resource() {
		return false
	}
	return string(p.Action()) == Wildcard
}
