// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain constants and small value types shared by the
// store, services and HTTP layers: roles, statuses, setting categories and events.
package model

import "slices"

// App-wide roles stored in user_roles.
const (
	AppRoleMaster       = "master"
	AppRoleMNCAdmin     = "mnc_admin"
	AppRoleProjectStaff = "project_staff"
)

// AppRoles lists every assignable app role.
var AppRoles = []string{AppRoleMaster, AppRoleMNCAdmin, AppRoleProjectStaff}

// IsValidAppRole reports whether role is a known app role.
func IsValidAppRole(role string) bool {
	return slices.Contains(AppRoles, role)
}

// Project member roles.
const (
	ProjectRoleOwner  = "owner"
	ProjectRoleAdmin  = "admin"
	ProjectRoleEditor = "editor"
	ProjectRoleViewer = "viewer"
)

// projectRoleLevels maps project roles to comparable levels.
var projectRoleLevels = map[string]int{
	ProjectRoleViewer: 1,
	ProjectRoleEditor: 2,
	ProjectRoleAdmin:  3,
	ProjectRoleOwner:  4,
}

// ProjectRoleLevel returns the level of a project role, or 0 for unknown roles.
func ProjectRoleLevel(role string) int {
	return projectRoleLevels[role]
}

// IsValidProjectRole reports whether role is a known project role.
func IsValidProjectRole(role string) bool {
	return ProjectRoleLevel(role) > 0
}

// Identity is the authenticated user with their app roles.
type Identity struct {
	UserID int64
	Email  string
	Name   string
	Roles  []string
}

// HasRole reports whether the identity carries the given app role.
func (i *Identity) HasRole(role string) bool {
	return i != nil && slices.Contains(i.Roles, role)
}

// IsMaster reports whether the identity has the master role.
func (i *Identity) IsMaster() bool {
	return i.HasRole(AppRoleMaster)
}

// CanCreateProjects reports whether the identity may create new projects.
func (i *Identity) CanCreateProjects() bool {
	return i.HasRole(AppRoleMaster) || i.HasRole(AppRoleMNCAdmin)
}

// ImplicitProjectLevel is the project level granted by app roles alone,
// before any membership is considered.
func (i *Identity) ImplicitProjectLevel() int {
	switch {
	case i.HasRole(AppRoleMaster):
		return ProjectRoleLevel(ProjectRoleOwner)
	case i.HasRole(AppRoleMNCAdmin):
		return ProjectRoleLevel(ProjectRoleAdmin)
	case i.HasRole(AppRoleProjectStaff):
		return ProjectRoleLevel(ProjectRoleViewer)
	}
	return 0
}
