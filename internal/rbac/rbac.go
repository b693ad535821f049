// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package rbac implements the flat permission table used by the admin API
// and the client route guard. A permission set is a plain
// resource -> action -> bool map; roles are named templates of that map
// and there is no inheritance between them.
package rbac

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Resource is a named content category used as a permission-check key.
type Resource string

// Action is an operation class checked against a resource.
type Action string

// Resources.
const (
	ResourceProjects Resource = "projects"
	ResourceBlog     Resource = "blog"
	ResourceTeam     Resource = "team"
	ResourceServices Resource = "services"
	ResourceContacts Resource = "contacts"
	ResourceCompany  Resource = "company"
	ResourceUsers    Resource = "users"
	ResourceMedia    Resource = "media"
	ResourceEvents   Resource = "events"
)

// Actions.
const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionPublish Action = "publish"
)

// Roles.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
	RoleViewer     = "viewer"
)

// AllResources returns every resource known to the permission table.
func AllResources() []Resource {
	return []Resource{
		ResourceProjects,
		ResourceBlog,
		ResourceTeam,
		ResourceServices,
		ResourceContacts,
		ResourceCompany,
		ResourceUsers,
		ResourceMedia,
		ResourceEvents,
	}
}

// AllActions returns every action known to the permission table.
func AllActions() []Action {
	return []Action{ActionRead, ActionWrite, ActionDelete, ActionPublish}
}

// Roles returns the names of all role templates.
func Roles() []string {
	return []string{RoleSuperAdmin, RoleAdmin, RoleEditor, RoleViewer}
}

// IsValidRole reports whether role names a known template.
func IsValidRole(role string) bool {
	_, ok := roleTemplates[role]
	return ok
}

// IsValidResource reports whether r is a known resource.
func IsValidResource(r Resource) bool {
	for _, known := range AllResources() {
		if known == r {
			return true
		}
	}
	return false
}

// IsValidAction reports whether a is a known action.
func IsValidAction(a Action) bool {
	for _, known := range AllActions() {
		if known == a {
			return true
		}
	}
	return false
}

// Permissions is a flat resource -> action -> granted table.
type Permissions map[Resource]map[Action]bool

// Allows looks up a single grant. Missing keys deny.
func (p Permissions) Allows(r Resource, a Action) bool {
	if p == nil {
		return false
	}
	actions, ok := p[r]
	if !ok {
		return false
	}
	return actions[a]
}

// Set records a grant (or an explicit revocation when granted is false).
func (p Permissions) Set(r Resource, a Action, granted bool) {
	if p[r] == nil {
		p[r] = make(map[Action]bool)
	}
	p[r][a] = granted
}

// Clone returns a deep copy of the table.
func (p Permissions) Clone() Permissions {
	out := make(Permissions, len(p))
	for r, actions := range p {
		cp := make(map[Action]bool, len(actions))
		for a, v := range actions {
			cp[a] = v
		}
		out[r] = cp
	}
	return out
}

// Grants lists the granted (resource, action) pairs as "resource:action"
// strings in a stable order.
func (p Permissions) Grants() []string {
	var out []string
	for r, actions := range p {
		for a, v := range actions {
			if v {
				out = append(out, string(r)+":"+string(a))
			}
		}
	}
	sort.Strings(out)
	return out
}

// Validate rejects unknown resources or actions.
func (p Permissions) Validate() error {
	for r, actions := range p {
		if !IsValidResource(r) {
			return fmt.Errorf("unknown resource %q", r)
		}
		for a := range actions {
			if !IsValidAction(a) {
				return fmt.Errorf("unknown action %q for resource %q", a, r)
			}
		}
	}
	return nil
}

// String returns the JSON column form.
func (p Permissions) String() string {
	data, err := json.Marshal(p)
	if err != nil || len(p) == 0 {
		return "{}"
	}
	return string(data)
}

// ParsePermissions decodes the JSON column form. Empty input yields an
// empty table.
func ParsePermissions(s string) (Permissions, error) {
	p := Permissions{}
	if s == "" || s == "{}" || s == "null" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("parsing permissions: %w", err)
	}
	return p, nil
}

// Subject is anything that carries a role and a permission table.
type Subject interface {
	GetRole() string
	GetPermissions() Permissions
}

// HasPermission is the single authorization decision used by route gates,
// navigation and the client guard. super_admin is granted everything;
// every other role is granted exactly what its permission table says.
func HasPermission(s Subject, r Resource, a Action) bool {
	if s == nil {
		return false
	}
	if s.GetRole() == RoleSuperAdmin {
		return true
	}
	return s.GetPermissions().Allows(r, a)
}

// Exceeding lists the grants of p that s does not hold itself, as sorted
// "resource:action" strings. A user may only hand out permissions it has.
func Exceeding(s Subject, p Permissions) []string {
	var out []string
	for r, actions := range p {
		for a, granted := range actions {
			if granted && !HasPermission(s, r, a) {
				out = append(out, string(r)+":"+string(a))
			}
		}
	}
	sort.Strings(out)
	return out
}
