// Package commands turns chat events into bot behaviour: it parses prefixed
// messages into commands, runs them against the store and the platform
// session, and keeps the store in step with guild membership events.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tmhi/discord-bot/db"
	"github.com/tmhi/discord-bot/telemetry"
	"github.com/tmhi/discord-bot/tmhi"
)

// Config carries the static strings commands show to users.
type Config struct {
	Version string
	// DocsURL links the general documentation, CommandDocsURL the command
	// reference. Either may be empty.
	DocsURL        string
	CommandDocsURL string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.log = l } }

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// WithRegistry replaces the built-in command table.
func WithRegistry(r *Registry) Option { return func(d *Dispatcher) { d.registry = r } }

// Dispatcher routes platform events. It is safe for concurrent use; the
// platform delivers every event on its own goroutine.
type Dispatcher struct {
	store    Store
	session  Session
	clocks   Clocks
	registry *Registry
	cfg      Config
	log      *slog.Logger
	now      func() time.Time

	// serializes membership syncs per guild
	locks keyedMutex
}

// NewDispatcher wires a dispatcher with the built-in commands.
func NewDispatcher(store Store, session Session, clocks Clocks, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		session: session,
		clocks:  clocks,
		cfg:     cfg,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	if d.registry == nil {
		d.registry = Builtins()
	}
	d.log = d.log.With(slog.String("component", "commands"))
	return d
}

// event tags ctx with a fresh correlation id and counts the event.
func (d *Dispatcher) event(ctx context.Context, name, guildID string) (context.Context, *slog.Logger) {
	corr := uuid.NewString()
	ctx = telemetry.WithCorrelation(ctx, corr)
	telemetry.CountEvent(name)
	return ctx, d.log.With(slog.String("event", name), slog.String("guild", guildID), slog.String("corr", corr))
}

func recoverEvent(log *slog.Logger) {
	if r := recover(); r != nil {
		log.Error("event handler panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
	}
}

// HandleMessage runs the command contained in msg, if any.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg Message) {
	if msg.Author.Bot || msg.GuildID == "" {
		return
	}
	ctx, log := d.event(ctx, "message", msg.GuildID)
	defer recoverEvent(log)

	settings, err := d.store.LoadGuildSettings(ctx, msg.GuildID)
	if err != nil {
		log.Error("load settings failed", slog.Any("err", err))
		d.reply(ctx, log, msg, replySettingsFailed)
		return
	}

	prefix, body, ok := d.matchPrefix(settings, msg.Content)
	if !ok {
		return
	}
	name, args, ok := Parse(body)
	if !ok {
		d.reply(ctx, log, msg, fmt.Sprintf(replyEmptyCommand, prefix))
		return
	}

	cmd, found := d.registry.Lookup(name, ParseAliases(settings.Get(tmhi.SettingCommandAliases).String()))
	unrecognized := ""
	if !found {
		if cmd, found = d.registry.Lookup("help", nil); !found {
			return
		}
		unrecognized = name
	}

	guild, err := d.session.Guild(ctx, msg.GuildID)
	if err != nil {
		log.Error("load guild failed", slog.Any("err", err))
		d.reply(ctx, log, msg, replyCommandFailed)
		return
	}

	req := &Request{
		Store:        d.store,
		Session:      d.session,
		Clocks:       d.clocks,
		Registry:     d.registry,
		Config:       d.cfg,
		Settings:     settings,
		Guild:        guild,
		Message:      msg,
		Command:      cmd,
		Args:         args,
		Prefix:       prefix,
		Unrecognized: unrecognized,
		Now:          d.now,
		Log:          log.With(slog.String("command", cmd.Name), slog.String("member", msg.Author.ID)),
	}
	d.execute(ctx, req)

	if settings.Get(tmhi.SettingDeleteCommandMessage).BoolValue() {
		req.DeleteTrigger(ctx)
	}
}

// matchPrefix strips the effective prefix or the bot mention from content.
// The returned prefix is the one to show users.
func (d *Dispatcher) matchPrefix(settings tmhi.Settings, content string) (prefix, body string, ok bool) {
	var mentions []string
	if id := d.session.BotUserID(); id != "" {
		mentions = []string{"<@" + id + ">", "<@!" + id + ">"}
		prefix = mentions[0] + " "
	}
	if p, set := settings.Get(tmhi.SettingCommandPrefix).Value(); set && p != "" {
		prefix = p
		if strings.HasPrefix(content, p) {
			return prefix, content[len(p):], true
		}
	}
	for _, m := range mentions {
		if strings.HasPrefix(content, m) {
			return prefix, content[len(m):], true
		}
	}
	return "", "", false
}

// execute runs the handler with tracing, metrics and panic recovery.
func (d *Dispatcher) execute(ctx context.Context, req *Request) {
	ctx, span := telemetry.StartSpan(ctx, "commands", "command "+req.Command.Name,
		telemetry.GuildAttr(req.Guild.ID), telemetry.CommandAttr(req.Command.Name))
	start := time.Now()
	outcome := "ok"
	var err error
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			err = fmt.Errorf("panic: %v", r)
			req.Log.Error("command panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			req.Reply(ctx, replyCommandFailed)
		}
		telemetry.ObserveCommand(req.Command.Name, outcome, time.Since(start))
		telemetry.EndSpan(span, err)
	}()

	if err = req.Command.Run(ctx, req); err != nil {
		outcome = "error"
		req.Log.Error("command failed", slog.Any("err", err))
		req.Reply(ctx, replyCommandFailed)
	}
}

func (d *Dispatcher) reply(ctx context.Context, log *slog.Logger, msg Message, text string) {
	if err := d.session.Reply(ctx, msg.ChannelID, msg.ID, text); err != nil {
		log.Warn("reply failed", slog.Any("err", err))
	}
}

// RestoreWidgets starts every persisted widget whose target still exists.
func (d *Dispatcher) RestoreWidgets(ctx context.Context, checker db.TargetChecker) (int, error) {
	widgets, err := d.store.LoadClocks(ctx, checker)
	if err != nil {
		return 0, err
	}
	started := 0
	for _, w := range widgets {
		if err := d.clocks.Start(ctx, w); err != nil {
			d.log.Warn("widget not restored", slog.String("widget", w.ID()), slog.Any("err", err))
			continue
		}
		started++
	}
	return started, nil
}
