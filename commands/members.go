package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"regexp"
	"strconv"

	"github.com/tmhi/discord-bot/db"
	"github.com/tmhi/discord-bot/tmhi"
)

var defaultPollReactions = []string{"👍", "👎"}

func runCreatePoll(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermCreatePolls, "create a poll"); !ok {
		return err
	}
	reactions := req.Args[1:]
	if len(reactions) == 0 {
		reactions = defaultPollReactions
	}

	pollID, err := req.Session.Send(ctx, req.Message.ChannelID, req.Args[0])
	if err != nil {
		return err
	}
	// in order, so the options read left to right
	for _, r := range reactions {
		emoji := r
		if custom, ok := req.Session.GuildEmoji(ctx, req.Guild.ID, r); ok {
			emoji = custom
		}
		if err := req.Session.React(ctx, req.Message.ChannelID, pollID, emoji); err != nil {
			req.Log.Warn("poll reaction failed", slog.String("reaction", r), slog.Any("err", err))
		}
	}
	// the poll echoes the command almost verbatim
	req.DeleteTrigger(ctx)
	return nil
}

func runInitiate(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermInitiate, "initiate a member"); !ok {
		return err
	}
	gm, ok, err := findMember(ctx, req, req.Args[0])
	if !ok {
		return err
	}

	roleID := req.Settings.Get(tmhi.SettingInitiateRole).IDValue()
	message := req.Settings.Get(tmhi.SettingInitiateMessage).String()
	if roleID == "" && message == "" {
		req.Replyf(ctx, "Please set the %s or %s settings to enable this command",
			tmhi.SettingInitiateRole, tmhi.SettingInitiateMessage)
		return nil
	}
	if roleID != "" {
		if err := req.Session.AddMemberRole(ctx, req.Guild.ID, gm.ID, roleID); err != nil {
			return err
		}
	}
	if message != "" {
		text := tmhi.Render(message, memberVars(req.Guild, gm))
		if err := req.Session.SendDM(ctx, gm.ID, text); err != nil {
			// closed DMs are the member's choice
			req.Log.Warn("initiate DM failed", slog.String("target", gm.ID), slog.Any("err", err))
		}
	}
	req.Replyf(ctx, "Initiated %s!", gm.Mention())
	return nil
}

// memberVars are the placeholders member-facing templates may use.
func memberVars(g tmhi.Guild, gm tmhi.GuildMember) map[string]string {
	return map[string]string{
		"member": gm.Mention(),
		"name":   gm.DisplayName,
		"guild":  g.Name,
	}
}

var timezonePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_+\-/:]{0,63}$`)

func runSetTimezone(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 || !timezonePattern.MatchString(req.Args[0]) {
		req.Usage(ctx)
		return nil
	}
	me := req.Message.Author
	err := req.Store.SetMemberTimezone(ctx, me.ID, req.Args[0])
	if errors.Is(err, db.ErrMemberNotFound) {
		if err = req.Store.AddMember(ctx, me); err == nil {
			err = req.Store.SetMemberTimezone(ctx, me.ID, req.Args[0])
		}
	}
	if err != nil {
		return err
	}
	m := tmhi.NewMember(me, tmhi.Profile{Timezone: req.Args[0]}, tmhi.PermissionSet{})
	req.Replyf(ctx, "Your timezone is now %s", m.Timezone)
	return nil
}

func runLinkWiki(ctx context.Context, req *Request) error {
	if len(req.Args) != 3 {
		req.Usage(ctx)
		return nil
	}
	// the message carries an e-mail address; never leave it in the channel
	defer req.DeleteTrigger(ctx)

	if _, ok, err := req.Authorize(ctx, tmhi.PermAdmin, "link wiki accounts"); !ok {
		return err
	}
	gm, ok, err := findMember(ctx, req, req.Args[0])
	if !ok {
		return err
	}
	wikiID, err := strconv.ParseInt(req.Args[1], 10, 64)
	if err != nil || wikiID <= 0 {
		req.Reply(ctx, "Sorry, the wiki id must be a positive number")
		return nil
	}
	addr, err := mail.ParseAddress(req.Args[2])
	if err != nil {
		req.Reply(ctx, "Sorry, that doesn't look like an e-mail address")
		return nil
	}
	if err := req.Store.AddMember(ctx, gm); err != nil {
		return err
	}
	if err := req.Store.LinkWikiAccount(ctx, gm.ID, wikiID, addr.Address); err != nil {
		return err
	}
	req.Replyf(ctx, "Linked %s to wiki account %d", gm.DisplayName, wikiID)
	return nil
}
