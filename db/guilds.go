package db

import (
	"context"
	"log/slog"

	"github.com/tmhi/discord-bot/telemetry"
	"github.com/tmhi/discord-bot/tmhi"
)

// AddGuild upserts the guild row, refreshing its name and owner.
func (g *Gateway) AddGuild(ctx context.Context, guild tmhi.Guild) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO guilds (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			owner_id = EXCLUDED.owner_id,
			updated_at = NOW()`,
		guild.ID, guild.Name, guild.OwnerID, nullTime(guild.CreatedAt))
	if err != nil {
		return fail("add_guild", err)
	}
	return nil
}

// CountGuilds returns the number of known guilds.
func (g *Gateway) CountGuilds(ctx context.Context) (int, error) {
	var n int
	if err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guilds`).Scan(&n); err != nil {
		return 0, fail("count_guilds", err)
	}
	return n, nil
}

// SyncGuild brings the database in line with a platform snapshot: guild row,
// baseline permissions, the role table, then every non-bot member and its
// roles. The first error stops the sync; each sweep is its own transaction so
// a partial sync leaves consistent tables.
func (g *Gateway) SyncGuild(ctx context.Context, snap tmhi.GuildSnapshot) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "db", "SyncGuild", telemetry.GuildAttr(snap.Guild.ID))
	defer func() { telemetry.EndSpan(span, err) }()

	synced := 0
	took := telemetry.TimeFunc(telemetry.SyncDuration, func() {
		synced, err = g.syncGuild(ctx, snap)
	})
	if err != nil {
		return err
	}
	g.log.Info("guild synced",
		slog.String("guild", snap.Guild.ID),
		slog.Int("roles", len(snap.Roles)),
		slog.Int("members", synced),
		slog.Duration("took", took))
	return nil
}

func (g *Gateway) syncGuild(ctx context.Context, snap tmhi.GuildSnapshot) (int, error) {
	if err := g.AddGuild(ctx, snap.Guild); err != nil {
		return 0, err
	}
	if err := g.InitPermissions(ctx, snap.Guild.ID); err != nil {
		return 0, err
	}
	if err := g.SyncGuildRoles(ctx, snap.Guild.ID, snap.Roles); err != nil {
		return 0, err
	}
	synced := 0
	for _, m := range snap.Members {
		if m.Bot {
			continue
		}
		if err := g.AddMember(ctx, m); err != nil {
			return synced, err
		}
		if err := g.SyncMemberRoles(ctx, m); err != nil {
			return synced, err
		}
		synced++
	}
	return synced, nil
}
