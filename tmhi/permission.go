// Package tmhi holds the value objects shared by the gateway, the command
// dispatcher and the platform adapter: permissions, per-guild settings, and
// the snapshots of guilds, roles and members the bot reasons about.
package tmhi

// Well-known permission ids.
const (
	// PermGodMode is synthesized for the guild owner (and optionally the bot
	// operator). It is never stored.
	PermGodMode = "GOD_MODE"
	// PermAdmin is the stored superuser grant.
	PermAdmin = "ADMIN"

	PermCreatePermissions    = "CREATE_PERMISSIONS"
	PermGrantRolePermissions = "GRANT_ROLE_PERMISSIONS"
	PermCreatePolls          = "CREATE_POLLS"
	PermInitiate             = "INITIATE"
	PermCreateClocks         = "CREATE_CLOCKS"
)

// Permission is a named capability scoped to one guild. The pair
// (ID, GuildID) is unique.
type Permission struct {
	ID      string
	GuildID string
	Name    string
	Comment string
}

// NewPermission builds a permission, defaulting the display name to the id.
func NewPermission(id, guildID, name, comment string) Permission {
	if name == "" {
		name = id
	}
	return Permission{ID: id, GuildID: guildID, Name: name, Comment: comment}
}

// BaselinePermissions is the catalog every guild gets on sync.
func BaselinePermissions(guildID string) []Permission {
	return []Permission{
		NewPermission(PermAdmin, guildID, "Administrator", "Grants every permission"),
		NewPermission(PermCreatePermissions, guildID, "Create permissions", "Allows creating new permissions"),
		NewPermission(PermGrantRolePermissions, guildID, "Grant role permissions", "Allows granting permissions to roles"),
		NewPermission(PermCreatePolls, guildID, "Create polls", "Allows creating polls"),
	}
}

// GodMode returns the synthetic superuser permission for a guild.
func GodMode(guildID string) Permission {
	return NewPermission(PermGodMode, guildID, "God mode", "Guild owner or bot operator")
}

// PermissionSet is an insertion-ordered set of permissions keyed by id.
// The zero value is ready to use.
type PermissionSet struct {
	order []string
	byID  map[string]Permission
}

// NewPermissionSet returns a set containing perms.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s.Add(p)
	}
	return s
}

// Add inserts p; an existing entry with the same id is kept.
func (s *PermissionSet) Add(p Permission) {
	if s.byID == nil {
		s.byID = make(map[string]Permission)
	}
	if _, ok := s.byID[p.ID]; ok {
		return
	}
	s.byID[p.ID] = p
	s.order = append(s.order, p.ID)
}

// Has reports membership by id.
func (s PermissionSet) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Get returns the permission stored under id.
func (s PermissionSet) Get(id string) (Permission, bool) {
	p, ok := s.byID[id]
	return p, ok
}

func (s PermissionSet) Len() int { return len(s.order) }

// All returns the permissions in insertion order.
func (s PermissionSet) All() []Permission {
	out := make([]Permission, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// IDs returns the permission ids in insertion order.
func (s PermissionSet) IDs() []string {
	return append([]string(nil), s.order...)
}

// Union returns a new set with the members of s followed by those of o.
func (s PermissionSet) Union(o PermissionSet) PermissionSet {
	out := NewPermissionSet(s.All()...)
	for _, p := range o.All() {
		out.Add(p)
	}
	return out
}
