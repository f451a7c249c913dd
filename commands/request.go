package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmhi/discord-bot/db"
	"github.com/tmhi/discord-bot/tmhi"
)

// Fixed replies.
const (
	replySettingsFailed = "Sorry, I couldn't load this server's settings. Please contact the bot maintainer."
	replyCommandFailed  = "Sorry, something went wrong on my side. Please contact the bot maintainer."
	replyMemberMissing  = "Sorry, I don't have you in my database yet. Try again in a minute."
	replyOtherMissing   = "Sorry, I don't have %s in my database yet. Try again in a minute."
	replyEmptyCommand   = "Hi! Send `%shelp` to see what I can do."
)

// Request is everything a handler gets for one command invocation.
type Request struct {
	Store    Store
	Session  Session
	Clocks   Clocks
	Registry *Registry
	Config   Config

	Settings tmhi.Settings
	Guild    tmhi.Guild
	Message  Message
	Command  *Command
	Args     []string
	// Prefix is the effective prefix as shown to users.
	Prefix string
	// Unrecognized holds the typed command name when it resolved to nothing
	// and the request fell through to help.
	Unrecognized string

	Now func() time.Time
	Log *slog.Logger

	deleted bool
}

// Reply answers the triggering message. Failures are logged, not returned:
// a reply that cannot be delivered has nowhere else to go.
func (r *Request) Reply(ctx context.Context, text string) {
	if err := r.Session.Reply(ctx, r.Message.ChannelID, r.Message.ID, text); err != nil {
		r.Log.Warn("reply failed", slog.Any("err", err))
	}
}

// Replyf formats and replies.
func (r *Request) Replyf(ctx context.Context, format string, args ...any) {
	r.Reply(ctx, fmt.Sprintf(format, args...))
}

// Usage replies with the command's syntax.
func (r *Request) Usage(ctx context.Context) {
	r.Replyf(ctx, "Invalid syntax. Syntax is: `%s%s`", r.Prefix, r.Command.Syntax)
}

// DeleteTrigger removes the triggering message once.
func (r *Request) DeleteTrigger(ctx context.Context) {
	if r.deleted {
		return
	}
	r.deleted = true
	if err := r.Session.DeleteMessage(ctx, r.Message.ChannelID, r.Message.ID); err != nil && !errors.Is(err, tmhi.ErrNotFound) {
		r.Log.Warn("delete command message failed", slog.Any("err", err))
	}
}

// Author loads the invoking member with resolved permissions. ok is false
// (and the user already told) when the member is not stored yet.
func (r *Request) Author(ctx context.Context) (*tmhi.Member, bool, error) {
	return r.loadMember(ctx, r.Message.Author)
}

func (r *Request) loadMember(ctx context.Context, gm tmhi.GuildMember) (*tmhi.Member, bool, error) {
	m, err := r.Store.LoadMember(ctx, r.Guild, gm)
	if errors.Is(err, db.ErrMemberNotFound) {
		if gm.ID != r.Message.Author.ID {
			r.Replyf(ctx, replyOtherMissing, gm.DisplayName)
		} else {
			r.Reply(ctx, replyMemberMissing)
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load member %s: %w", gm.ID, err)
	}
	return m, true, nil
}

// Authorize loads the invoking member and checks perm. When ok is false the
// user has been answered and the handler should return.
func (r *Request) Authorize(ctx context.Context, perm, action string) (*tmhi.Member, bool, error) {
	m, ok, err := r.Author(ctx)
	if !ok || err != nil {
		return nil, false, err
	}
	if !m.HasPermission(perm) {
		r.Replyf(ctx, "Sorry, to %s you need the %s permission", action, perm)
		return nil, false, nil
	}
	return m, true, nil
}

// Save persists settings, wrapping the error with the command name.
func (r *Request) Save(ctx context.Context, settings ...*tmhi.Setting) error {
	if _, err := r.Store.StoreGuildSettings(ctx, settings...); err != nil {
		return fmt.Errorf("store settings: %w", err)
	}
	return nil
}
