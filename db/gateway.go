package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmhi/discord-bot/crypto"
	"github.com/tmhi/discord-bot/telemetry"
)

// Gateway error kinds. Callers classify with errors.Is.
var (
	// ErrMemberNotFound is a hard miss: the member row does not exist.
	ErrMemberNotFound = errors.New("member not found")
	// ErrCrossGuild rejects a grant whose role/member and permission belong
	// to different guilds. Nothing is written.
	ErrCrossGuild = errors.New("permission and grantee belong to different guilds")
	// ErrUnknownSetting means a guild override references a setting id that
	// is missing from the catalog. Treated as a data-integrity fault.
	ErrUnknownSetting = errors.New("guild setting not in catalog")
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Gateway is the bot's only path to the database. Every call is a fresh
// query; nothing is cached.
type Gateway struct {
	db         *sql.DB
	operatorID string
	sealer     *crypto.Sealer
	log        *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithOperator sets the bot operator's user id for BOT_OWNER_GOD_MODE.
func WithOperator(id string) Option { return func(g *Gateway) { g.operatorID = id } }

// WithSealer enables e-mail sealing at rest.
func WithSealer(s *crypto.Sealer) Option { return func(g *Gateway) { g.sealer = s } }

// NewGateway wraps an open pool.
func NewGateway(db *sql.DB, opts ...Option) *Gateway {
	g := &Gateway{db: db, log: slog.Default().With(slog.String("component", "db_gateway"))}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Ping checks connectivity.
func (g *Gateway) Ping(ctx context.Context) error { return g.db.PingContext(ctx) }

// inTx runs fn in a transaction, rolling back on error.
func (g *Gateway) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			g.log.Warn("rollback failed", slog.Any("err", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// fail counts and wraps a failed operation.
func fail(op string, err error) error {
	telemetry.CountGatewayError(op)
	return fmt.Errorf("%s: %w", op, err)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
