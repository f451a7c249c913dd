package commands

import (
	"context"
	"log/slog"

	"github.com/tmhi/discord-bot/tmhi"
)

// HandleGuildCreate mirrors a guild the bot joined (or reconnected to) into
// the store: the guild row, the baseline permissions, roles and members.
func (d *Dispatcher) HandleGuildCreate(ctx context.Context, guildID string) {
	ctx, log := d.event(ctx, "guild_create", guildID)
	defer recoverEvent(log)
	defer d.locks.Lock(guildID)()

	snap, err := d.session.GuildSnapshot(ctx, guildID)
	if err != nil {
		log.Error("fetch guild snapshot failed", slog.Any("err", err))
		return
	}
	if err := d.store.SyncGuild(ctx, snap); err != nil {
		log.Error("guild sync failed", slog.Any("err", err))
		return
	}
	log.Info("guild synced", slog.Int("roles", len(snap.Roles)), slog.Int("members", len(snap.Members)))
}

// HandleMemberJoin stores a new member and posts the configured greeting.
func (d *Dispatcher) HandleMemberJoin(ctx context.Context, m tmhi.GuildMember) {
	ctx, log := d.event(ctx, "member_join", m.GuildID)
	defer recoverEvent(log)
	if m.Bot {
		return
	}

	func() {
		defer d.locks.Lock(m.GuildID)()
		if err := d.store.AddMember(ctx, m); err != nil {
			log.Error("add member failed", slog.String("member", m.ID), slog.Any("err", err))
			return
		}
		if err := d.store.SyncMemberRoles(ctx, m); err != nil {
			log.Error("sync member roles failed", slog.String("member", m.ID), slog.Any("err", err))
		}
	}()

	d.greet(ctx, log, m)
}

func (d *Dispatcher) greet(ctx context.Context, log *slog.Logger, m tmhi.GuildMember) {
	settings, err := d.store.LoadGuildSettings(ctx, m.GuildID)
	if err != nil {
		log.Error("load settings failed", slog.Any("err", err))
		return
	}
	channelID := settings.Get(tmhi.SettingWelcomeChannel).IDValue()
	message := settings.Get(tmhi.SettingWelcomeMessage).String()
	if channelID == "" || message == "" {
		return
	}
	guild, err := d.session.Guild(ctx, m.GuildID)
	if err != nil {
		log.Error("load guild failed", slog.Any("err", err))
		return
	}
	if _, err := d.session.Send(ctx, channelID, tmhi.Render(message, memberVars(guild, m))); err != nil {
		log.Warn("welcome message failed", slog.String("channel", channelID), slog.Any("err", err))
	}
}

// HandleMemberUpdate refreshes a member's name and role set.
func (d *Dispatcher) HandleMemberUpdate(ctx context.Context, m tmhi.GuildMember) {
	ctx, log := d.event(ctx, "member_update", m.GuildID)
	defer recoverEvent(log)
	if m.Bot {
		return
	}
	defer d.locks.Lock(m.GuildID)()

	if err := d.store.AddMember(ctx, m); err != nil {
		log.Error("add member failed", slog.String("member", m.ID), slog.Any("err", err))
		return
	}
	if err := d.store.SyncMemberRoles(ctx, m); err != nil {
		log.Error("sync member roles failed", slog.String("member", m.ID), slog.Any("err", err))
	}
}

// HandleMemberLeave clears a departed member's roles. The member row and
// direct grants stay so they apply again if the member returns.
func (d *Dispatcher) HandleMemberLeave(ctx context.Context, guildID, userID string) {
	ctx, log := d.event(ctx, "member_leave", guildID)
	defer recoverEvent(log)
	defer d.locks.Lock(guildID)()

	if err := d.store.SyncMemberRoles(ctx, tmhi.GuildMember{ID: userID, GuildID: guildID}); err != nil {
		log.Error("clear member roles failed", slog.String("member", userID), slog.Any("err", err))
	}
}

// HandleRolesChanged re-syncs the guild's role catalog after a role was
// created, updated or deleted.
func (d *Dispatcher) HandleRolesChanged(ctx context.Context, guildID string) {
	ctx, log := d.event(ctx, "roles_changed", guildID)
	defer recoverEvent(log)
	defer d.locks.Lock(guildID)()

	roles, err := d.session.GuildRoles(ctx, guildID)
	if err != nil {
		log.Error("fetch roles failed", slog.Any("err", err))
		return
	}
	if err := d.store.SyncGuildRoles(ctx, guildID, roles); err != nil {
		log.Error("role sync failed", slog.Any("err", err))
	}
}
