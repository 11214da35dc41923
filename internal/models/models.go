// Package models defines the hosting platform entities and parses them from
// raw API payloads.
//
// Entities are immutable snapshots: they are built once per fetch and never
// changed locally. Every mutation goes through a remote workflow.
package models

import (
	"slices"
	"strings"
	"time"
)

// Role is an organization role as sent on the wire.
type Role string

const (
	RoleUnprivileged Role = "unprivileged"
	RoleAdmin        Role = "admin"
	RoleTeamMember   Role = "team_member"
	RoleDeveloper    Role = "developer"
)

// FeatureChangeManagement unlocks the team_member and developer roles.
const FeatureChangeManagement = "change_management"

// AssignableRoles returns the roles an organization accepts, in display
// order. The extended vocabulary requires change management.
func AssignableRoles(changeManagement bool) []Role {
	roles := []Role{RoleUnprivileged, RoleAdmin}
	if changeManagement {
		roles = append(roles, RoleTeamMember, RoleDeveloper)
	}
	return roles
}

// DateFormat renders site creation timestamps.
const DateFormat = "2006-01-02 15:04:05"

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

// Organization is a billing and administrative group.
type Organization struct {
	ID   string
	Name string
	// Features is nil when the payload did not carry feature flags.
	Features map[string]bool
}

// HasFeature reports whether the named flag is enabled.
func (o Organization) HasFeature(name string) bool { return o.Features[name] }

func (o Organization) Key() string { return o.ID }

func (o Organization) Aliases() [][]string { return [][]string{{o.Name}} }

// User is a platform account.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	FullName  string
}

// DisplayName returns the best human label for u.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if n := strings.TrimSpace(u.FirstName + " " + u.LastName); n != "" {
		return n
	}
	return u.Email
}

func (u User) Key() string { return u.ID }

func (u User) Aliases() [][]string { return [][]string{{u.Email}, {u.DisplayName()}} }

// Site is a hosted website.
type Site struct {
	ID           string
	Name         string
	ServiceLevel string
	Framework    string
	Created      time.Time
	Frozen       bool
}

func (s Site) Key() string { return s.ID }

func (s Site) Aliases() [][]string { return [][]string{{s.Name}} }

// UserOrganizationMembership links the session user to an organization.
type UserOrganizationMembership struct {
	ID   string
	Role Role
	// Name is the membership's own profile name; often empty, in which case
	// lookups fall through to Organization.Name.
	Name         string
	Organization Organization
}

func (m UserOrganizationMembership) Key() string { return m.ID }

// Aliases resolves the membership's own name and the organization ID first,
// then the nested organization's name.
func (m UserOrganizationMembership) Aliases() [][]string {
	return [][]string{{m.Name, m.Organization.ID}, {m.Organization.Name}}
}

// OrganizationUserMembership links an organization to one of its members.
type OrganizationUserMembership struct {
	ID   string
	Role Role
	User User
}

func (m OrganizationUserMembership) Key() string { return m.ID }

func (m OrganizationUserMembership) Aliases() [][]string {
	return [][]string{{m.User.ID, m.User.Email}, {m.User.DisplayName()}}
}

// SiteMembership links an organization or a user to a site. Tags are only
// carried by organization site memberships.
type SiteMembership struct {
	ID   string
	Tags []string
	Site Site
}

// HasTag reports whether tag is one of m's tags. Matching is exact.
func (m SiteMembership) HasTag(tag string) bool { return slices.Contains(m.Tags, tag) }

func (m SiteMembership) Key() string { return m.ID }

func (m SiteMembership) Aliases() [][]string { return [][]string{{m.Site.ID, m.Site.Name}} }
