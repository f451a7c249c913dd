package commands

import (
	"context"

	"github.com/tmhi/discord-bot/clock"
	"github.com/tmhi/discord-bot/db"
	"github.com/tmhi/discord-bot/tmhi"
)

// Session is the slice of the chat platform the bot talks to. Lookups of
// things that do not exist return an error wrapping tmhi.ErrNotFound.
type Session interface {
	// BotUserID is the bot's own user id; its mention is the fallback prefix.
	BotUserID() string

	Guild(ctx context.Context, guildID string) (tmhi.Guild, error)
	GuildSnapshot(ctx context.Context, guildID string) (tmhi.GuildSnapshot, error)
	GuildRoles(ctx context.Context, guildID string) ([]tmhi.Role, error)
	GuildRole(ctx context.Context, guildID, roleID string) (tmhi.Role, error)
	GuildMember(ctx context.Context, guildID, userID string) (tmhi.GuildMember, error)
	// GuildEmoji returns the reaction form of a custom emoji named name.
	GuildEmoji(ctx context.Context, guildID, name string) (string, bool)
	// Channel checks that channelID is a channel of guildID.
	Channel(ctx context.Context, guildID, channelID string) error
	// BotMessage checks that messageID exists in channelID and was written by
	// the bot, so it can be edited.
	BotMessage(ctx context.Context, channelID, messageID string) error

	Send(ctx context.Context, channelID, content string) (messageID string, err error)
	Reply(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	SendDM(ctx context.Context, userID, content string) error
	SendDMEmbed(ctx context.Context, userID string, e Embed) error
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
}

// Store is the persistence the dispatcher needs; *db.Gateway satisfies it.
type Store interface {
	LoadGuildSettings(ctx context.Context, guildID string) (tmhi.Settings, error)
	StoreGuildSettings(ctx context.Context, settings ...*tmhi.Setting) (int64, error)

	SyncGuild(ctx context.Context, snap tmhi.GuildSnapshot) error
	SyncGuildRoles(ctx context.Context, guildID string, roles []tmhi.Role) error
	AddMember(ctx context.Context, m tmhi.GuildMember) error
	SyncMemberRoles(ctx context.Context, m tmhi.GuildMember) error
	LoadMember(ctx context.Context, guild tmhi.Guild, gm tmhi.GuildMember) (*tmhi.Member, error)
	SetMemberTimezone(ctx context.Context, memberID, tz string) error
	LinkWikiAccount(ctx context.Context, memberID string, wikiID int64, email string) error

	CreatePermission(ctx context.Context, p tmhi.Permission) error
	PermissionExists(ctx context.Context, p tmhi.Permission) (bool, error)
	ListPermissions(ctx context.Context, guildID string) ([]tmhi.Permission, error)
	GrantRolePermission(ctx context.Context, role tmhi.Role, p tmhi.Permission, comment string) error
	RevokeRolePermission(ctx context.Context, role tmhi.Role, p tmhi.Permission) (bool, error)
	GrantMemberPermission(ctx context.Context, guildID, memberID string, p tmhi.Permission, comment string) error
	RevokeMemberPermission(ctx context.Context, guildID, memberID string, p tmhi.Permission) (bool, error)

	StoreClock(ctx context.Context, w clock.Widget) error
	DeleteClock(ctx context.Context, id string) (bool, error)
	LoadClocks(ctx context.Context, checker db.TargetChecker) ([]clock.Widget, error)
}

var _ Store = (*db.Gateway)(nil)

// Clocks runs live widgets; *clock.Manager satisfies it.
type Clocks interface {
	Start(ctx context.Context, w clock.Widget) error
	Stop(id string) bool
}

var _ Clocks = (*clock.Manager)(nil)

// Message is an inbound chat message. GuildID is empty for direct messages.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Content   string
	Author    tmhi.GuildMember
}

// Embed is a rich message body.
type Embed struct {
	Title       string
	URL         string
	Description string
	Footer      string
	Fields      []EmbedField
}

// EmbedField is one name/value row of an Embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}
