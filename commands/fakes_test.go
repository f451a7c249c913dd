package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/tmhi/discord-bot/clock"
	"github.com/tmhi/discord-bot/db"
	"github.com/tmhi/discord-bot/tmhi"
)

func ptr(s string) *string { return &s }

// catalog mirrors the seeded settings migration.
var catalog = []struct {
	id  string
	def *string
}{
	{tmhi.SettingCommandPrefix, nil},
	{tmhi.SettingDeleteCommandMessage, ptr("false")},
	{tmhi.SettingBotOwnerGodMode, ptr("false")},
	{tmhi.SettingWelcomeMessage, nil},
	{tmhi.SettingWelcomeChannel, nil},
	{tmhi.SettingInitiateRole, nil},
	{tmhi.SettingInitiateMessage, nil},
	{tmhi.SettingCommandAliases, nil},
}

type grant struct{ holder, perm string }

// fakeStore keeps guild state in memory with the gateway's semantics.
type fakeStore struct {
	mu sync.Mutex

	settingsErr error
	overrides   map[string]map[string]string // guild -> setting -> value
	members     map[string]tmhi.GuildMember  // guild/member -> member
	profiles    map[string]tmhi.Profile
	perms       map[string]tmhi.Permission // guild/id
	rolePerms   map[grant]string           // comment
	memberPerms map[grant]string
	roles       map[string][]tmhi.Role
	clocks      map[string]clock.Widget
	synced      []tmhi.GuildSnapshot
	roleSyncs   []tmhi.GuildMember
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		overrides:   make(map[string]map[string]string),
		members:     make(map[string]tmhi.GuildMember),
		profiles:    make(map[string]tmhi.Profile),
		perms:       make(map[string]tmhi.Permission),
		rolePerms:   make(map[grant]string),
		memberPerms: make(map[grant]string),
		roles:       make(map[string][]tmhi.Role),
		clocks:      make(map[string]clock.Widget),
	}
}

func key(a, b string) string { return a + "/" + b }

func (s *fakeStore) seedGuild(guildID string) {
	for _, p := range tmhi.BaselinePermissions(guildID) {
		s.perms[key(guildID, p.ID)] = p
	}
}

func (s *fakeStore) LoadGuildSettings(_ context.Context, guildID string) (tmhi.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingsErr != nil {
		return nil, s.settingsErr
	}
	out := make(tmhi.Settings)
	for _, c := range catalog {
		st := tmhi.NewSetting(c.id, c.id, "", c.def, guildID)
		if v, ok := s.overrides[guildID][c.id]; ok {
			st.Set(v)
		}
		out[c.id] = st
	}
	return out, nil
}

func (s *fakeStore) StoreGuildSettings(_ context.Context, settings ...*tmhi.Setting) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, st := range settings {
		if s.overrides[st.GuildID] == nil {
			s.overrides[st.GuildID] = make(map[string]string)
		}
		if st.IsDefault() {
			delete(s.overrides[st.GuildID], st.ID)
		} else {
			s.overrides[st.GuildID][st.ID] = *st.RawValue()
		}
		n++
	}
	return n, nil
}

func (s *fakeStore) setOverride(guildID, id, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrides[guildID] == nil {
		s.overrides[guildID] = make(map[string]string)
	}
	s.overrides[guildID][id] = value
}

func (s *fakeStore) SyncGuild(_ context.Context, snap tmhi.GuildSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, snap)
	return nil
}

func (s *fakeStore) SyncGuildRoles(_ context.Context, guildID string, roles []tmhi.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[guildID] = roles
	return nil
}

func (s *fakeStore) AddMember(_ context.Context, m tmhi.GuildMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[key(m.GuildID, m.ID)] = m
	return nil
}

func (s *fakeStore) SyncMemberRoles(_ context.Context, m tmhi.GuildMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleSyncs = append(s.roleSyncs, m)
	return nil
}

func (s *fakeStore) LoadMember(_ context.Context, guild tmhi.Guild, gm tmhi.GuildMember) (*tmhi.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[key(guild.ID, gm.ID)]; !ok {
		return nil, fmt.Errorf("member %s: %w", gm.ID, db.ErrMemberNotFound)
	}
	perms := tmhi.NewPermissionSet()
	var ids []string
	for g := range s.rolePerms {
		if gm.HasRole(g.holder) {
			ids = append(ids, g.perm)
		}
	}
	for g := range s.memberPerms {
		if g.holder == gm.ID {
			ids = append(ids, g.perm)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		perms.Add(s.perms[key(guild.ID, id)])
	}
	if gm.ID == guild.OwnerID {
		perms.Add(tmhi.GodMode(guild.ID))
	}
	return tmhi.NewMember(gm, s.profiles[gm.ID], perms), nil
}

func (s *fakeStore) SetMemberTimezone(_ context.Context, memberID, tz string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.ID == memberID {
			p := s.profiles[memberID]
			p.Timezone = tz
			s.profiles[memberID] = p
			return nil
		}
	}
	return db.ErrMemberNotFound
}

func (s *fakeStore) LinkWikiAccount(_ context.Context, memberID string, wikiID int64, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profiles[memberID]
	p.WikiID, p.Email = wikiID, email
	s.profiles[memberID] = p
	return nil
}

func (s *fakeStore) CreatePermission(_ context.Context, p tmhi.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[key(p.GuildID, p.ID)] = p
	return nil
}

func (s *fakeStore) PermissionExists(_ context.Context, p tmhi.Permission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.perms[key(p.GuildID, p.ID)]
	return ok, nil
}

func (s *fakeStore) ListPermissions(_ context.Context, guildID string) ([]tmhi.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tmhi.Permission
	for _, p := range s.perms {
		if p.GuildID == guildID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GrantRolePermission(_ context.Context, role tmhi.Role, p tmhi.Permission, comment string) error {
	if role.GuildID != p.GuildID {
		return db.ErrCrossGuild
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolePerms[grant{role.ID, p.ID}] = comment
	return nil
}

func (s *fakeStore) RevokeRolePermission(_ context.Context, role tmhi.Role, p tmhi.Permission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := grant{role.ID, p.ID}
	_, ok := s.rolePerms[g]
	delete(s.rolePerms, g)
	return ok, nil
}

func (s *fakeStore) GrantMemberPermission(_ context.Context, guildID, memberID string, p tmhi.Permission, comment string) error {
	if guildID != p.GuildID {
		return db.ErrCrossGuild
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberPerms[grant{memberID, p.ID}] = comment
	return nil
}

func (s *fakeStore) RevokeMemberPermission(_ context.Context, _, memberID string, p tmhi.Permission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := grant{memberID, p.ID}
	_, ok := s.memberPerms[g]
	delete(s.memberPerms, g)
	return ok, nil
}

func (s *fakeStore) StoreClock(_ context.Context, w clock.Widget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clocks[w.ID()] = w
	return nil
}

func (s *fakeStore) DeleteClock(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clocks[id]
	delete(s.clocks, id)
	return ok, nil
}

func (s *fakeStore) LoadClocks(_ context.Context, _ db.TargetChecker) ([]clock.Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []clock.Widget
	for _, w := range s.clocks {
		out = append(out, w)
	}
	return out, nil
}

type sent struct{ channel, content string }

// fakeSession records outbound calls and serves a fixed guild.
type fakeSession struct {
	mu sync.Mutex

	botID    string
	guild    tmhi.Guild
	members  map[string]tmhi.GuildMember
	roles    map[string]tmhi.Role
	channels map[string]bool
	emoji    map[string]string

	replies   []string
	sends     []sent
	dms       map[string][]string
	embeds    map[string][]Embed
	deleted   []string
	reactions []string
	roleAdds  []string
	nextID    int
}

func newFakeSession(guild tmhi.Guild) *fakeSession {
	return &fakeSession{
		botID:    gofakeit.Numerify("9#################"),
		guild:    guild,
		members:  make(map[string]tmhi.GuildMember),
		roles:    make(map[string]tmhi.Role),
		channels: make(map[string]bool),
		emoji:    make(map[string]string),
		dms:      make(map[string][]string),
		embeds:   make(map[string][]Embed),
	}
}

func (f *fakeSession) BotUserID() string { return f.botID }

func (f *fakeSession) Guild(_ context.Context, guildID string) (tmhi.Guild, error) {
	if guildID != f.guild.ID {
		return tmhi.Guild{}, tmhi.ErrNotFound
	}
	return f.guild, nil
}

func (f *fakeSession) GuildSnapshot(_ context.Context, guildID string) (tmhi.GuildSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := tmhi.GuildSnapshot{Guild: f.guild}
	for _, r := range f.roles {
		snap.Roles = append(snap.Roles, r)
	}
	for _, m := range f.members {
		snap.Members = append(snap.Members, m)
	}
	return snap, nil
}

func (f *fakeSession) GuildRoles(_ context.Context, _ string) ([]tmhi.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tmhi.Role
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSession) GuildRole(_ context.Context, _, roleID string) (tmhi.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[roleID]
	if !ok {
		return tmhi.Role{}, fmt.Errorf("role %s: %w", roleID, tmhi.ErrNotFound)
	}
	return r, nil
}

func (f *fakeSession) GuildMember(_ context.Context, _, userID string) (tmhi.GuildMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return tmhi.GuildMember{}, fmt.Errorf("member %s: %w", userID, tmhi.ErrNotFound)
	}
	return m, nil
}

func (f *fakeSession) GuildEmoji(_ context.Context, _, name string) (string, bool) {
	e, ok := f.emoji[name]
	return e, ok
}

func (f *fakeSession) Channel(_ context.Context, _, channelID string) error {
	if !f.channels[channelID] {
		return tmhi.ErrNotFound
	}
	return nil
}

func (f *fakeSession) BotMessage(_ context.Context, _, messageID string) error {
	if messageID != "555" {
		return tmhi.ErrNotFound
	}
	return nil
}

func (f *fakeSession) Send(_ context.Context, channelID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sent{channelID, content})
	f.nextID++
	return fmt.Sprintf("%d", 1000+f.nextID), nil
}

func (f *fakeSession) Reply(_ context.Context, _, _, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, content)
	return nil
}

func (f *fakeSession) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) React(_ context.Context, _, _, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, emoji)
	return nil
}

func (f *fakeSession) SendDM(_ context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

func (f *fakeSession) SendDMEmbed(_ context.Context, userID string, e Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds[userID] = append(f.embeds[userID], e)
	return nil
}

func (f *fakeSession) AddMemberRole(_ context.Context, _, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleAdds = append(f.roleAdds, userID+":"+roleID)
	return nil
}

func (f *fakeSession) lastReply() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return ""
	}
	return f.replies[len(f.replies)-1]
}

// fakeClocks records widget starts and stops.
type fakeClocks struct {
	mu      sync.Mutex
	running map[string]clock.Widget
	err     error
}

func newFakeClocks() *fakeClocks { return &fakeClocks{running: make(map[string]clock.Widget)} }

func (c *fakeClocks) Start(_ context.Context, w clock.Widget) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running[w.ID()] = w
	return nil
}

func (c *fakeClocks) Stop(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[id]
	delete(c.running, id)
	return ok
}

var errBoom = errors.New("boom")
