package discord

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/tmhi/discord-bot/commands"
)

// Bind routes gateway events to d. Handlers run on their own goroutines
// with ctx as parent. onReady runs once, after the first Ready event.
func (s *Session) Bind(ctx context.Context, d *commands.Dispatcher, onReady func(context.Context)) {
	var once sync.Once
	s.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		s.log.Info("discord ready", slog.String("user", r.User.Username), slog.Int("guilds", len(r.Guilds)))
		if onReady != nil {
			once.Do(func() { onReady(ctx) })
		}
	})
	s.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		d.HandleMessage(ctx, toMessage(m.Message))
	})
	s.dg.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		if g.Unavailable {
			return
		}
		d.HandleGuildCreate(ctx, g.ID)
	})
	s.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
		d.HandleMemberJoin(ctx, toMember(m.GuildID, m.Member))
	})
	s.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
		d.HandleMemberUpdate(ctx, toMember(m.GuildID, m.Member))
	})
	s.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
		if m.User == nil {
			return
		}
		d.HandleMemberLeave(ctx, m.GuildID, m.User.ID)
	})
	s.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleCreate) {
		d.HandleRolesChanged(ctx, r.GuildID)
	})
	s.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleUpdate) {
		d.HandleRolesChanged(ctx, r.GuildID)
	})
	s.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleDelete) {
		d.HandleRolesChanged(ctx, r.GuildID)
	})
}
