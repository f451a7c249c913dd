package tmhi

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by platform lookups for guilds, members, roles,
// channels or messages that no longer exist.
var ErrNotFound = errors.New("not found")

// Guild is the tenant the bot serves.
type Guild struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// Role is a guild role as seen on the platform.
type Role struct {
	ID          string
	GuildID     string
	Name        string
	Color       int
	Permissions int64
	Comment     string
}

// GuildMember holds the read-only platform facts about a member of one
// guild. RoleIDs reflect the membership at the time the snapshot was taken.
type GuildMember struct {
	ID          string
	GuildID     string
	DisplayName string
	RoleIDs     []string
	Bot         bool
}

// Mention renders the platform mention for the member.
func (m GuildMember) Mention() string { return "<@" + m.ID + ">" }

// HasRole reports whether roleID is among the member's roles.
func (m GuildMember) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// GuildSnapshot is everything SyncGuild needs from the platform.
type GuildSnapshot struct {
	Guild   Guild
	Roles   []Role
	Members []GuildMember
}

// Profile is the bot-owned data stored for a member.
type Profile struct {
	Timezone string
	WikiID   int64
	Email    string
}

// Member is a guild member enriched with its stored profile and the
// effective permission set resolved at load time.
type Member struct {
	GuildMember
	Profile
	Permissions PermissionSet
}

// NewMember composes a member from its platform facts.
func NewMember(gm GuildMember, p Profile, perms PermissionSet) *Member {
	m := &Member{GuildMember: gm, Permissions: perms}
	m.SetTimezone(p.Timezone)
	m.WikiID = p.WikiID
	m.Email = p.Email
	return m
}

// SetTimezone stores the zone upper-cased; empty stays empty.
func (m *Member) SetTimezone(tz string) {
	m.Timezone = strings.ToUpper(strings.TrimSpace(tz))
}

// HasPermission reports whether the member holds id. GOD_MODE and ADMIN
// satisfy every check.
func (m *Member) HasPermission(id string) bool {
	if m == nil {
		return false
	}
	return m.Permissions.Has(PermGodMode) || m.Permissions.Has(PermAdmin) || m.Permissions.Has(id)
}
