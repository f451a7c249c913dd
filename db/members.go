package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmhi/discord-bot/crypto"
	"github.com/tmhi/discord-bot/tmhi"
)

// AddMember upserts the member row. Only the display name is refreshed;
// profile columns belong to the bot.
func (g *Gateway) AddMember(ctx context.Context, m tmhi.GuildMember) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO members (id, display_name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = NOW()`,
		m.ID, m.DisplayName)
	if err != nil {
		return fail("add_member", err)
	}
	return nil
}

// LoadMember reads the member's profile and resolves its effective
// permissions in guild: role grants (for the roles gm holds right now) union
// member grants, plus GOD_MODE for the guild owner, and for the bot operator
// when the guild enabled BOT_OWNER_GOD_MODE.
func (g *Gateway) LoadMember(ctx context.Context, guild tmhi.Guild, gm tmhi.GuildMember) (*tmhi.Member, error) {
	var (
		p          tmhi.Profile
		sealedWith int
	)
	err := g.db.QueryRowContext(ctx, `
		SELECT timezone, wiki_id, email, email_seal_version FROM members WHERE id = $1`, gm.ID).
		Scan(&p.Timezone, &p.WikiID, &p.Email, &sealedWith)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load member %s: %w", gm.ID, ErrMemberNotFound)
	}
	if err != nil {
		return nil, fail("load_member", err)
	}
	if sealedWith > 0 {
		p.Email = g.openEmail(gm.ID, p.Email)
	}

	perms, err := g.resolvePermissions(ctx, guild.ID, gm)
	if err != nil {
		return nil, err
	}
	switch {
	case gm.ID == guild.OwnerID:
		perms.Add(tmhi.GodMode(guild.ID))
	case g.operatorID != "" && gm.ID == g.operatorID:
		s, err := g.loadSetting(ctx, guild.ID, tmhi.SettingBotOwnerGodMode)
		if err != nil {
			return nil, err
		}
		if s.Enabled() {
			perms.Add(tmhi.GodMode(guild.ID))
		}
	}
	return tmhi.NewMember(gm, p, perms), nil
}

func (g *Gateway) openEmail(memberID, sealed string) string {
	if g.sealer == nil {
		g.log.Warn("sealed e-mail but no ENCRYPTION_KEY configured", slog.String("member", memberID))
		return ""
	}
	plain, err := g.sealer.Open(sealed)
	if err != nil {
		g.log.Warn("could not open member e-mail", slog.String("member", memberID), slog.Any("err", err))
		return ""
	}
	return plain
}

func (g *Gateway) resolvePermissions(ctx context.Context, guildID string, gm tmhi.GuildMember) (tmhi.PermissionSet, error) {
	roleIDs := gm.RoleIDs
	if roleIDs == nil {
		roleIDs = []string{}
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.comment
		FROM permissions p
		JOIN rolepermissions rp ON rp.permission_id = p.id AND rp.guild_id = p.guild_id
		WHERE p.guild_id = $1 AND rp.role_id = ANY($2)
		UNION
		SELECT p.id, p.name, p.comment
		FROM permissions p
		JOIN memberpermissions mp ON mp.permission_id = p.id AND mp.guild_id = p.guild_id
		WHERE p.guild_id = $1 AND mp.member_id = $3
		ORDER BY 1`,
		guildID, roleIDs, gm.ID)
	if err != nil {
		return tmhi.PermissionSet{}, fail("resolve_permissions", err)
	}
	defer rows.Close()

	var set tmhi.PermissionSet
	for rows.Next() {
		p := tmhi.Permission{GuildID: guildID}
		if err := rows.Scan(&p.ID, &p.Name, &p.Comment); err != nil {
			return tmhi.PermissionSet{}, fail("resolve_permissions", err)
		}
		set.Add(p)
	}
	if err := rows.Err(); err != nil {
		return tmhi.PermissionSet{}, fail("resolve_permissions", err)
	}
	return set, nil
}

// SetMemberTimezone stores the member's timezone (upper-cased).
func (g *Gateway) SetMemberTimezone(ctx context.Context, memberID, tz string) error {
	m := tmhi.Member{}
	m.SetTimezone(tz)
	res, err := g.db.ExecContext(ctx, `UPDATE members SET timezone = $2, updated_at = NOW() WHERE id = $1`, memberID, m.Timezone)
	if err != nil {
		return fail("set_timezone", err)
	}
	return requireRow(res, memberID)
}

// LinkWikiAccount records the member's wiki id and e-mail. The e-mail is
// sealed when a sealer is configured.
func (g *Gateway) LinkWikiAccount(ctx context.Context, memberID string, wikiID int64, email string) error {
	version := 0
	if g.sealer != nil && email != "" {
		sealed, err := g.sealer.Seal(email)
		if err != nil {
			return fail("link_wiki", err)
		}
		email, version = sealed, crypto.SealVersion
	}
	res, err := g.db.ExecContext(ctx, `
		UPDATE members SET wiki_id = $2, email = $3, email_seal_version = $4, updated_at = NOW()
		WHERE id = $1`, memberID, wikiID, email, version)
	if err != nil {
		return fail("link_wiki", err)
	}
	return requireRow(res, memberID)
}

// CountPlaintextEmails returns how many stored e-mails are not sealed.
func (g *Gateway) CountPlaintextEmails(ctx context.Context) (int, error) {
	var n int
	err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE email_seal_version = 0 AND email <> ''`).Scan(&n)
	if err != nil {
		return 0, fail("count_plaintext_emails", err)
	}
	return n, nil
}

// SealPlaintextEmails seals every e-mail written before a key was configured
// and returns how many rows changed.
func (g *Gateway) SealPlaintextEmails(ctx context.Context) (int, error) {
	if g.sealer == nil {
		return 0, fmt.Errorf("seal e-mails: no sealer configured")
	}
	rows, err := g.db.QueryContext(ctx, `SELECT id, email FROM members WHERE email_seal_version = 0 AND email <> ''`)
	if err != nil {
		return 0, fail("seal_emails", err)
	}
	type pending struct{ id, email string }
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.email); err != nil {
			rows.Close()
			return 0, fail("seal_emails", err)
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fail("seal_emails", err)
	}

	sealedCount := 0
	for _, p := range todo {
		sealed, err := g.sealer.Seal(p.email)
		if err != nil {
			return sealedCount, fail("seal_emails", err)
		}
		// only rows that are still plaintext
		res, err := g.db.ExecContext(ctx, `
			UPDATE members SET email = $2, email_seal_version = $3
			WHERE id = $1 AND email_seal_version = 0`, p.id, sealed, crypto.SealVersion)
		if err != nil {
			return sealedCount, fail("seal_emails", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			sealedCount++
		}
	}
	return sealedCount, nil
}

func requireRow(res sql.Result, memberID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("member %s: %w", memberID, ErrMemberNotFound)
	}
	return nil
}
