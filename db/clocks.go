package db

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/tmhi/discord-bot/clock"
)

// TargetChecker reports whether a widget's guild, channel and message still
// exist on the platform.
type TargetChecker interface {
	WidgetTargetExists(ctx context.Context, w clock.Widget) (bool, error)
}

// StoreClock upserts a widget keyed by its target.
func (g *Gateway) StoreClock(ctx context.Context, w clock.Widget) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO clocks (id, kind, guild_id, channel_id, message_id, text_content, utc_offset, time_start, time_finish, finish_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			text_content = EXCLUDED.text_content,
			utc_offset = EXCLUDED.utc_offset,
			time_start = EXCLUDED.time_start,
			time_finish = EXCLUDED.time_finish,
			finish_message = EXCLUDED.finish_message`,
		w.ID(), string(w.Kind), w.GuildID, w.ChannelID, w.MessageID, w.Text, w.UTCOffset,
		nullTime(w.Start), nullTime(w.Finish), w.FinishMessage)
	if err != nil {
		return fail("store_clock", err)
	}
	return nil
}

// DeleteClock removes a widget row, reporting whether it existed.
func (g *Gateway) DeleteClock(ctx context.Context, id string) (bool, error) {
	res, err := g.db.ExecContext(ctx, `DELETE FROM clocks WHERE id = $1`, id)
	if err != nil {
		return false, fail("delete_clock", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// LoadClocks reads every persisted widget. Rows with an unknown kind or
// missing fields, and rows whose target the checker says is gone, are
// deleted and skipped. A checker error keeps the row.
func (g *Gateway) LoadClocks(ctx context.Context, checker TargetChecker) ([]clock.Widget, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, kind, guild_id, channel_id, message_id, text_content, utc_offset, time_start, time_finish, finish_message
		FROM clocks ORDER BY id`)
	if err != nil {
		return nil, fail("load_clocks", err)
	}
	type loaded struct {
		id string
		w  clock.Widget
		ok bool
	}
	var all []loaded
	for rows.Next() {
		var (
			l             loaded
			kind          string
			start, finish sql.NullTime
		)
		if err := rows.Scan(&l.id, &kind, &l.w.GuildID, &l.w.ChannelID, &l.w.MessageID, &l.w.Text,
			&l.w.UTCOffset, &start, &finish, &l.w.FinishMessage); err != nil {
			rows.Close()
			return nil, fail("load_clocks", err)
		}
		l.w.Start, l.w.Finish = start.Time, finish.Time
		if k, err := clock.ParseKind(kind); err == nil {
			l.w.Kind = k
			l.ok = l.w.Validate() == nil
		}
		all = append(all, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fail("load_clocks", err)
	}

	var out []clock.Widget
	for _, l := range all {
		if !l.ok {
			g.log.Warn("pruning malformed widget row", slog.String("widget", l.id))
			g.prune(ctx, l.id)
			continue
		}
		if checker != nil {
			exists, err := checker.WidgetTargetExists(ctx, l.w)
			if err != nil {
				g.log.Warn("could not verify widget target, keeping", slog.String("widget", l.id), slog.Any("err", err))
			} else if !exists {
				g.log.Info("pruning widget with vanished target", slog.String("widget", l.id))
				g.prune(ctx, l.id)
				continue
			}
		}
		out = append(out, l.w)
	}
	return out, nil
}

func (g *Gateway) prune(ctx context.Context, id string) {
	if _, err := g.DeleteClock(ctx, id); err != nil {
		g.log.Error("prune widget failed", slog.String("widget", id), slog.Any("err", err))
	}
}
