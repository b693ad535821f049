// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package rbac

// Gate is the (resource, action) pair protecting an admin route.
type Gate struct {
	Resource Resource
	Action   Action
}

// NavItem is an admin navigation entry. Its gate is the same pair the
// route itself checks, so a user never sees an entry they cannot open.
type NavItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Gate  Gate   `json:"-"`
}

// AdminNav is the admin navigation in display order.
var AdminNav = []NavItem{
	{Label: "Dashboard", Path: "/admin"},
	{Label: "Projects", Path: "/admin/projects", Gate: Gate{ResourceProjects, ActionRead}},
	{Label: "Blog", Path: "/admin/blog", Gate: Gate{ResourceBlog, ActionRead}},
	{Label: "Team", Path: "/admin/team", Gate: Gate{ResourceTeam, ActionRead}},
	{Label: "Services", Path: "/admin/services", Gate: Gate{ResourceServices, ActionRead}},
	{Label: "Contacts", Path: "/admin/contacts", Gate: Gate{ResourceContacts, ActionRead}},
	{Label: "Company info", Path: "/admin/company", Gate: Gate{ResourceCompany, ActionRead}},
	{Label: "Media", Path: "/admin/media", Gate: Gate{ResourceMedia, ActionRead}},
	{Label: "Users", Path: "/admin/users", Gate: Gate{ResourceUsers, ActionRead}},
	{Label: "Activity", Path: "/admin/events", Gate: Gate{ResourceEvents, ActionRead}},
}

// Open reports whether the gate lets s through. A zero gate is open to any
// authenticated subject.
func (g Gate) Open(s Subject) bool {
	if g.Resource == "" {
		return s != nil
	}
	return HasPermission(s, g.Resource, g.Action)
}

// NavItems filters AdminNav down to the entries s may open.
func NavItems(s Subject) []NavItem {
	var out []NavItem
	for _, item := range AdminNav {
		if item.Gate.Open(s) {
			out = append(out, item)
		}
	}
	return out
}

// GateForPath finds the gate of an admin navigation path.
func GateForPath(path string) (Gate, bool) {
	for _, item := range AdminNav {
		if item.Path == path {
			return item.Gate, true
		}
	}
	return Gate{}, false
}
