// Package discord adapts a discordgo session to the interfaces the bot core
// consumes: commands.Session for command replies and lookups, clock.Target
// for widget rendering, and db.TargetChecker for pruning stale widgets.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/tmhi/discord-bot/clock"
	"github.com/tmhi/discord-bot/commands"
	"github.com/tmhi/discord-bot/db"
	"github.com/tmhi/discord-bot/tmhi"
)

// Intents the bot needs: guild structure, member lists (privileged),
// messages with content (privileged) and direct messages.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildEmojis |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsDirectMessages

// channel names are capped by the platform
const maxChannelName = 100

// page size of the member list endpoint
const memberPage = 1000

var (
	_ commands.Session = (*Session)(nil)
	_ clock.Target     = (*Session)(nil)
	_ db.TargetChecker = (*Session)(nil)
)

// Session wraps a discordgo session.
type Session struct {
	dg      *discordgo.Session
	log     *slog.Logger
	renames *renameLimiter
	now     func() time.Time
}

// New creates a session for a bot token. It does not connect.
func New(token string) (*Session, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = Intents
	dg.StateEnabled = true
	return &Session{
		dg:      dg,
		log:     slog.Default().With(slog.String("component", "discord")),
		renames: newRenameLimiter(),
		now:     time.Now,
	}, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled, then
// closes it.
func (s *Session) Run(ctx context.Context) error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	s.log.Info("discord gateway connected")
	<-ctx.Done()
	if err := s.dg.Close(); err != nil {
		s.log.Warn("discord close failed", slog.Any("err", err))
	}
	return nil
}

// Connected reports whether the gateway handshake has completed.
func (s *Session) Connected() bool {
	s.dg.RLock()
	defer s.dg.RUnlock()
	return s.dg.DataReady
}

func (s *Session) BotUserID() string {
	if s.dg.State == nil || s.dg.State.User == nil {
		return ""
	}
	return s.dg.State.User.ID
}

func (s *Session) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if g, err := s.dg.State.Guild(guildID); err == nil {
		return g, nil
	}
	g, err := s.dg.Guild(guildID, discordgo.WithContext(ctx))
	return g, mapErr("fetch guild", err)
}

func (s *Session) Guild(ctx context.Context, guildID string) (tmhi.Guild, error) {
	g, err := s.guild(ctx, guildID)
	if err != nil {
		return tmhi.Guild{}, err
	}
	return toGuild(g), nil
}

// GuildSnapshot reads roles from the cached guild and pages through the
// full member list.
func (s *Session) GuildSnapshot(ctx context.Context, guildID string) (tmhi.GuildSnapshot, error) {
	g, err := s.guild(ctx, guildID)
	if err != nil {
		return tmhi.GuildSnapshot{}, err
	}
	snap := tmhi.GuildSnapshot{Guild: toGuild(g), Roles: toRoles(guildID, g.Roles)}
	after := ""
	for {
		page, err := s.dg.GuildMembers(guildID, after, memberPage, discordgo.WithContext(ctx))
		if err != nil {
			return tmhi.GuildSnapshot{}, mapErr("list members", err)
		}
		for _, m := range page {
			snap.Members = append(snap.Members, toMember(guildID, m))
		}
		if len(page) < memberPage {
			return snap, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (s *Session) GuildRoles(ctx context.Context, guildID string) ([]tmhi.Role, error) {
	roles, err := s.dg.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr("list roles", err)
	}
	return toRoles(guildID, roles), nil
}

func (s *Session) GuildRole(ctx context.Context, guildID, roleID string) (tmhi.Role, error) {
	if r, err := s.dg.State.Role(guildID, roleID); err == nil {
		return toRole(guildID, r), nil
	}
	roles, err := s.GuildRoles(ctx, guildID)
	if err != nil {
		return tmhi.Role{}, err
	}
	for _, r := range roles {
		if r.ID == roleID {
			return r, nil
		}
	}
	return tmhi.Role{}, fmt.Errorf("role %s: %w", roleID, tmhi.ErrNotFound)
}

func (s *Session) GuildMember(ctx context.Context, guildID, userID string) (tmhi.GuildMember, error) {
	if m, err := s.dg.State.Member(guildID, userID); err == nil && m.User != nil {
		return toMember(guildID, m), nil
	}
	m, err := s.dg.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return tmhi.GuildMember{}, mapErr("fetch member", err)
	}
	return toMember(guildID, m), nil
}

func (s *Session) GuildEmoji(ctx context.Context, guildID, name string) (string, bool) {
	g, err := s.guild(ctx, guildID)
	if err != nil {
		return "", false
	}
	for _, e := range g.Emojis {
		if e.Name == name {
			return e.APIName(), true
		}
	}
	return "", false
}

func (s *Session) Channel(ctx context.Context, guildID, channelID string) error {
	ch, err := s.dg.State.Channel(channelID)
	if err != nil {
		if ch, err = s.dg.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
			return mapErr("fetch channel", err)
		}
	}
	if ch.GuildID != guildID {
		return fmt.Errorf("channel %s not in guild %s: %w", channelID, guildID, tmhi.ErrNotFound)
	}
	return nil
}

func (s *Session) BotMessage(ctx context.Context, channelID, messageID string) error {
	m, err := s.dg.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return mapErr("fetch message", err)
	}
	if m.Author == nil || m.Author.ID != s.BotUserID() {
		return fmt.Errorf("message %s is not the bot's: %w", messageID, tmhi.ErrNotFound)
	}
	return nil
}

// userMentionsOnly keeps echoed user text from pinging roles or everyone.
var userMentionsOnly = &discordgo.MessageAllowedMentions{
	Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
}

func (s *Session) Send(ctx context.Context, channelID, content string) (string, error) {
	m, err := s.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: userMentionsOnly,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapErr("send message", err)
	}
	return m.ID, nil
}

// Reply answers messageID; if that message is already gone the reply is
// posted without the reference.
func (s *Session) Reply(ctx context.Context, channelID, messageID, content string) error {
	failIfGone := false
	_, err := s.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: userMentionsOnly,
		Reference:       &discordgo.MessageReference{MessageID: messageID, ChannelID: channelID, FailIfNotExists: &failIfGone},
	}, discordgo.WithContext(ctx))
	return mapErr("reply", err)
}

func (s *Session) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return mapErr("delete message", s.dg.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (s *Session) React(ctx context.Context, channelID, messageID, emoji string) error {
	return mapErr("add reaction", s.dg.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)))
}

func (s *Session) dmChannel(ctx context.Context, userID string) (string, error) {
	ch, err := s.dg.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapErr("open DM", err)
	}
	return ch.ID, nil
}

func (s *Session) SendDM(ctx context.Context, userID, content string) error {
	ch, err := s.dmChannel(ctx, userID)
	if err != nil {
		return err
	}
	_, err = s.dg.ChannelMessageSend(ch, content, discordgo.WithContext(ctx))
	return mapErr("send DM", err)
}

func (s *Session) SendDMEmbed(ctx context.Context, userID string, e commands.Embed) error {
	ch, err := s.dmChannel(ctx, userID)
	if err != nil {
		return err
	}
	_, err = s.dg.ChannelMessageSendEmbed(ch, toEmbed(e), discordgo.WithContext(ctx))
	return mapErr("send DM embed", err)
}

func (s *Session) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return mapErr("add member role", s.dg.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

// EditMessage renders a message widget.
func (s *Session) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_, err := s.dg.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	return mapErr("edit message", err)
}

// RenameChannel renders a channel-name widget, within the platform's rename
// budget.
func (s *Session) RenameChannel(ctx context.Context, channelID, name string) error {
	name = truncate(name, maxChannelName)
	changed, ok := s.renames.allow(channelID, name, s.now())
	if !changed {
		return nil
	}
	if !ok {
		return fmt.Errorf("rename %s: %w", channelID, ErrRenameThrottled)
	}
	_, err := s.dg.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	if err = mapErr("rename channel", err); err != nil {
		if errors.Is(err, tmhi.ErrNotFound) {
			s.renames.forget(channelID)
		}
		return err
	}
	s.renames.done(channelID, name)
	return nil
}

// WidgetTargetExists reports whether a widget's channel (and message) is
// still there.
func (s *Session) WidgetTargetExists(ctx context.Context, w clock.Widget) (bool, error) {
	if err := s.Channel(ctx, w.GuildID, w.ChannelID); err != nil {
		if errors.Is(err, tmhi.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !w.InMessage() {
		return true, nil
	}
	if err := s.BotMessage(ctx, w.ChannelID, w.MessageID); err != nil {
		if errors.Is(err, tmhi.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
