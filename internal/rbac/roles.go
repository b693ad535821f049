// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package rbac

// contentResources are the public-facing content types.
var contentResources = []Resource{
	ResourceProjects,
	ResourceBlog,
	ResourceTeam,
	ResourceServices,
}

// roleTemplates holds the default grants of each role. super_admin has an
// empty template because HasPermission short-circuits it.
var roleTemplates = map[string]Permissions{
	RoleSuperAdmin: {},
	RoleAdmin:      adminTemplate(),
	RoleEditor:     editorTemplate(),
	RoleViewer:     viewerTemplate(),
}

func adminTemplate() Permissions {
	p := Permissions{}
	for _, r := range AllResources() {
		for _, a := range AllActions() {
			p.Set(r, a, true)
		}
	}
	// Admins manage users but only super admins can remove access.
	p.Set(ResourceUsers, ActionDelete, false)
	return p
}

func editorTemplate() Permissions {
	p := Permissions{}
	for _, r := range contentResources {
		p.Set(r, ActionRead, true)
		p.Set(r, ActionWrite, true)
	}
	p.Set(ResourceBlog, ActionPublish, true)
	p.Set(ResourceContacts, ActionRead, true)
	p.Set(ResourceContacts, ActionWrite, true)
	p.Set(ResourceCompany, ActionRead, true)
	p.Set(ResourceMedia, ActionRead, true)
	p.Set(ResourceMedia, ActionWrite, true)
	return p
}

func viewerTemplate() Permissions {
	p := Permissions{}
	for _, r := range contentResources {
		p.Set(r, ActionRead, true)
	}
	p.Set(ResourceContacts, ActionRead, true)
	p.Set(ResourceCompany, ActionRead, true)
	return p
}

// RoleTemplate returns a copy of the default grants for role. Unknown roles
// get an empty table.
func RoleTemplate(role string) Permissions {
	t, ok := roleTemplates[role]
	if !ok {
		return Permissions{}
	}
	return t.Clone()
}

// Effective merges explicit per-user overrides over the role template.
// An override entry replaces the template entry, so an explicit false
// revokes a default grant.
func Effective(role string, overrides Permissions) Permissions {
	out := RoleTemplate(role)
	for r, actions := range overrides {
		for a, granted := range actions {
			out.Set(r, a, granted)
		}
	}
	return out
}
