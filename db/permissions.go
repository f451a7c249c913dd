package db

import (
	"context"
	"fmt"

	"github.com/tmhi/discord-bot/tmhi"
)

// CreatePermission upserts a permission, refreshing its name and comment.
func (g *Gateway) CreatePermission(ctx context.Context, p tmhi.Permission) error {
	p = tmhi.NewPermission(p.ID, p.GuildID, p.Name, p.Comment)
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO permissions (id, guild_id, name, comment) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id, guild_id) DO UPDATE SET name = EXCLUDED.name, comment = EXCLUDED.comment`,
		p.ID, p.GuildID, p.Name, p.Comment)
	if err != nil {
		return fail("create_permission", err)
	}
	return nil
}

// InitPermissions inserts the baseline catalog for a guild, keeping any
// names or comments the guild already edited.
func (g *Gateway) InitPermissions(ctx context.Context, guildID string) error {
	for _, p := range tmhi.BaselinePermissions(guildID) {
		_, err := g.db.ExecContext(ctx, `
			INSERT INTO permissions (id, guild_id, name, comment) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id, guild_id) DO NOTHING`,
			p.ID, p.GuildID, p.Name, p.Comment)
		if err != nil {
			return fail("init_permissions", err)
		}
	}
	return nil
}

// PermissionExists reports whether (p.ID, p.GuildID) is in the catalog.
func (g *Gateway) PermissionExists(ctx context.Context, p tmhi.Permission) (bool, error) {
	var ok bool
	err := g.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM permissions WHERE id = $1 AND guild_id = $2)`, p.ID, p.GuildID).Scan(&ok)
	if err != nil {
		return false, fail("permission_exists", err)
	}
	return ok, nil
}

// ListPermissions returns a guild's permission catalog ordered by id.
func (g *Gateway) ListPermissions(ctx context.Context, guildID string) ([]tmhi.Permission, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT id, name, comment FROM permissions WHERE guild_id = $1 ORDER BY id`, guildID)
	if err != nil {
		return nil, fail("list_permissions", err)
	}
	defer rows.Close()
	var out []tmhi.Permission
	for rows.Next() {
		p := tmhi.Permission{GuildID: guildID}
		if err := rows.Scan(&p.ID, &p.Name, &p.Comment); err != nil {
			return nil, fail("list_permissions", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list_permissions", err)
	}
	return out, nil
}

func crossGuild(granteeGuild string, p tmhi.Permission) error {
	if granteeGuild != p.GuildID {
		return fmt.Errorf("%w: grantee in guild %s, permission %s in guild %s",
			ErrCrossGuild, granteeGuild, p.ID, p.GuildID)
	}
	return nil
}

// GrantRolePermission grants p to role. A role and permission from
// different guilds yield ErrCrossGuild before any write.
func (g *Gateway) GrantRolePermission(ctx context.Context, role tmhi.Role, p tmhi.Permission, comment string) error {
	if err := crossGuild(role.GuildID, p); err != nil {
		return err
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO rolepermissions (role_id, permission_id, guild_id, comment) VALUES ($1, $2, $3, $4)
		ON CONFLICT (role_id, permission_id, guild_id) DO UPDATE SET comment = EXCLUDED.comment`,
		role.ID, p.ID, p.GuildID, comment)
	if err != nil {
		return fail("grant_role_permission", err)
	}
	return nil
}

// RevokeRolePermission removes a role grant, reporting whether one existed.
func (g *Gateway) RevokeRolePermission(ctx context.Context, role tmhi.Role, p tmhi.Permission) (bool, error) {
	if err := crossGuild(role.GuildID, p); err != nil {
		return false, err
	}
	res, err := g.db.ExecContext(ctx,
		`DELETE FROM rolepermissions WHERE role_id = $1 AND permission_id = $2 AND guild_id = $3`,
		role.ID, p.ID, p.GuildID)
	if err != nil {
		return false, fail("revoke_role_permission", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GrantMemberPermission grants p directly to a member of guildID.
func (g *Gateway) GrantMemberPermission(ctx context.Context, guildID, memberID string, p tmhi.Permission, comment string) error {
	if err := crossGuild(guildID, p); err != nil {
		return err
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO memberpermissions (member_id, permission_id, guild_id, comment) VALUES ($1, $2, $3, $4)
		ON CONFLICT (member_id, permission_id, guild_id) DO UPDATE SET comment = EXCLUDED.comment`,
		memberID, p.ID, p.GuildID, comment)
	if err != nil {
		return fail("grant_member_permission", err)
	}
	return nil
}

// RevokeMemberPermission removes a direct member grant.
func (g *Gateway) RevokeMemberPermission(ctx context.Context, guildID, memberID string, p tmhi.Permission) (bool, error) {
	if err := crossGuild(guildID, p); err != nil {
		return false, err
	}
	res, err := g.db.ExecContext(ctx,
		`DELETE FROM memberpermissions WHERE member_id = $1 AND permission_id = $2 AND guild_id = $3`,
		memberID, p.ID, p.GuildID)
	if err != nil {
		return false, fail("revoke_member_permission", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
