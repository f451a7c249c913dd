package db

import (
	"context"

	"github.com/tmhi/discord-bot/tmhi"
)

// StoreGuildRole upserts a role. The bot-owned comment survives updates.
func (g *Gateway) StoreGuildRole(ctx context.Context, r tmhi.Role) error {
	return storeGuildRole(ctx, g.db, r)
}

func storeGuildRole(ctx context.Context, q querier, r tmhi.Role) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO roles (id, guild_id, name, color, permissions, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			color = EXCLUDED.color,
			permissions = EXCLUDED.permissions`,
		r.ID, r.GuildID, r.Name, r.Color, r.Permissions, r.Comment)
	if err != nil {
		return fail("store_guild_role", err)
	}
	return nil
}

// DeleteGuildRolesExcluding deletes every role of guildID whose id is not in
// keep and returns the number removed. An empty keep deletes all of them.
func (g *Gateway) DeleteGuildRolesExcluding(ctx context.Context, guildID string, keep []string) (int64, error) {
	return deleteGuildRolesExcluding(ctx, g.db, guildID, keep)
}

func deleteGuildRolesExcluding(ctx context.Context, q querier, guildID string, keep []string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM roles WHERE guild_id = $1 AND NOT (id = ANY($2))`, guildID, nonNil(keep))
	if err != nil {
		return 0, fail("delete_guild_roles", err)
	}
	return res.RowsAffected()
}

// SyncGuildRoles makes the stored roles of guildID equal to roles: stale
// rows are deleted, then every current role is upserted. Idempotent.
func (g *Gateway) SyncGuildRoles(ctx context.Context, guildID string, roles []tmhi.Role) error {
	keep := make([]string, 0, len(roles))
	for _, r := range roles {
		keep = append(keep, r.ID)
	}
	return g.inTx(ctx, func(q querier) error {
		if _, err := deleteGuildRolesExcluding(ctx, q, guildID, keep); err != nil {
			return err
		}
		for _, r := range roles {
			r.GuildID = guildID
			if err := storeGuildRole(ctx, q, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// GuildRoleIDs lists the stored role ids of a guild.
func (g *Gateway) GuildRoleIDs(ctx context.Context, guildID string) ([]string, error) {
	return g.strings(ctx, "guild_role_ids", `SELECT id FROM roles WHERE guild_id = $1 ORDER BY id`, guildID)
}

// StoreMemberRole records that memberID holds roleID; existing rows are left alone.
func (g *Gateway) StoreMemberRole(ctx context.Context, guildID, memberID, roleID, comment string) error {
	return storeMemberRole(ctx, g.db, guildID, memberID, roleID, comment)
}

func storeMemberRole(ctx context.Context, q querier, guildID, memberID, roleID, comment string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO memberroles (member_id, role_id, guild_id, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (member_id, role_id) DO NOTHING`,
		memberID, roleID, guildID, comment)
	if err != nil {
		return fail("store_member_role", err)
	}
	return nil
}

// DeleteMemberRolesExcluding removes memberID's role rows in guildID that are not in keep.
func (g *Gateway) DeleteMemberRolesExcluding(ctx context.Context, guildID, memberID string, keep []string) (int64, error) {
	return deleteMemberRolesExcluding(ctx, g.db, guildID, memberID, keep)
}

func deleteMemberRolesExcluding(ctx context.Context, q querier, guildID, memberID string, keep []string) (int64, error) {
	res, err := q.ExecContext(ctx, `
		DELETE FROM memberroles
		WHERE guild_id = $1 AND member_id = $2 AND NOT (role_id = ANY($3))`,
		guildID, memberID, nonNil(keep))
	if err != nil {
		return 0, fail("delete_member_roles", err)
	}
	return res.RowsAffected()
}

// SyncMemberRoles makes the stored roles of m equal to m.RoleIDs. A member
// with no roles (e.g. one that left) ends with none stored.
func (g *Gateway) SyncMemberRoles(ctx context.Context, m tmhi.GuildMember) error {
	return g.inTx(ctx, func(q querier) error {
		if _, err := deleteMemberRolesExcluding(ctx, q, m.GuildID, m.ID, m.RoleIDs); err != nil {
			return err
		}
		for _, roleID := range m.RoleIDs {
			if err := storeMemberRole(ctx, q, m.GuildID, m.ID, roleID, ""); err != nil {
				return err
			}
		}
		return nil
	})
}

// MemberRoleIDs lists the stored role ids of a member in a guild.
func (g *Gateway) MemberRoleIDs(ctx context.Context, guildID, memberID string) ([]string, error) {
	return g.strings(ctx, "member_role_ids",
		`SELECT role_id FROM memberroles WHERE guild_id = $1 AND member_id = $2 ORDER BY role_id`, guildID, memberID)
}

func (g *Gateway) strings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fail(op, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fail(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(op, err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
