package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tmhi/discord-bot/tmhi"
)

// LoadGuildSettings returns the full catalog bound to guildID with the
// guild's overrides applied. The catalog is read first; an override whose
// setting id is not in the catalog fails the whole load with ErrUnknownSetting.
func (g *Gateway) LoadGuildSettings(ctx context.Context, guildID string) (tmhi.Settings, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT id, name, comment, default_value FROM settings ORDER BY id`)
	if err != nil {
		return nil, fail("load_settings", err)
	}
	settings := make(tmhi.Settings)
	for rows.Next() {
		var (
			id, name, comment string
			def               sql.NullString
		)
		if err := rows.Scan(&id, &name, &comment, &def); err != nil {
			rows.Close()
			return nil, fail("load_settings", err)
		}
		settings[id] = tmhi.NewSetting(id, name, comment, fromNull(def), guildID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fail("load_settings", err)
	}

	rows, err = g.db.QueryContext(ctx,
		`SELECT setting_id, value, comment FROM guildsettings WHERE guild_id = $1`, guildID)
	if err != nil {
		return nil, fail("load_guild_settings", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, value string
			comment   sql.NullString
		)
		if err := rows.Scan(&id, &value, &comment); err != nil {
			return nil, fail("load_guild_settings", err)
		}
		s, ok := settings[id]
		if !ok {
			return nil, fmt.Errorf("guild %s setting %s: %w", guildID, id, ErrUnknownSetting)
		}
		s.Set(value)
		if comment.Valid {
			s.SetComment(comment.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fail("load_guild_settings", err)
	}
	return settings, nil
}

// loadSetting resolves one setting for a guild.
func (g *Gateway) loadSetting(ctx context.Context, guildID, id string) (*tmhi.Setting, error) {
	var (
		name, comment         string
		def, value, gsComment sql.NullString
	)
	err := g.db.QueryRowContext(ctx, `
		SELECT s.name, s.comment, s.default_value, gs.value, gs.comment
		FROM settings s
		LEFT JOIN guildsettings gs ON gs.setting_id = s.id AND gs.guild_id = $1
		WHERE s.id = $2`, guildID, id).Scan(&name, &comment, &def, &value, &gsComment)
	if errors.Is(err, sql.ErrNoRows) {
		return tmhi.NewSetting(id, id, "", nil, guildID), nil
	}
	if err != nil {
		return nil, fail("load_setting", err)
	}
	s := tmhi.NewSetting(id, name, comment, fromNull(def), guildID)
	s.SetValue(fromNull(value))
	if gsComment.Valid {
		s.SetComment(gsComment.String)
	}
	return s, nil
}

// StoreGuildSettings persists each setting's override: a default override
// deletes the guild row, anything else is upserted. Every setting is
// attempted; the result is the combined rows affected and the first error.
func (g *Gateway) StoreGuildSettings(ctx context.Context, settings ...*tmhi.Setting) (int64, error) {
	var (
		total int64
		first error
	)
	for _, s := range settings {
		n, err := g.storeGuildSetting(ctx, s)
		total += n
		if err != nil && first == nil {
			first = err
		}
	}
	return total, first
}

func (g *Gateway) storeGuildSetting(ctx context.Context, s *tmhi.Setting) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if s.IsDefault() {
		res, err = g.db.ExecContext(ctx,
			`DELETE FROM guildsettings WHERE guild_id = $1 AND setting_id = $2`, s.GuildID, s.ID)
	} else {
		res, err = g.db.ExecContext(ctx, `
			INSERT INTO guildsettings (guild_id, setting_id, value, comment) VALUES ($1, $2, $3, $4)
			ON CONFLICT (guild_id, setting_id) DO UPDATE SET
				value = EXCLUDED.value,
				comment = COALESCE(EXCLUDED.comment, guildsettings.comment)`,
			s.GuildID, s.ID, *s.RawValue(), nullString(s.GuildComment()))
	}
	if err != nil {
		return 0, fail("store_setting", fmt.Errorf("%s: %w", s.ID, err))
	}
	return res.RowsAffected()
}

func fromNull(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
