package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/tmhi/discord-bot/clock"
	"github.com/tmhi/discord-bot/tmhi"
)

// widget target tokens
const (
	targetNew  = "new"
	targetName = "name"
)

func runAddClock(ctx context.Context, req *Request) error {
	args := req.Args
	if len(args) != 3 && len(args) != 4 {
		req.Usage(ctx)
		return nil
	}
	if len(args) == 3 {
		// no message id: post a fresh one
		args = []string{args[0], targetNew, args[1], args[2]}
	}
	return addClock(ctx, req, args[0], args[1], args[2], args[3])
}

func runAddClockChannel(ctx context.Context, req *Request) error {
	if len(req.Args) != 3 {
		req.Usage(ctx)
		return nil
	}
	return addClock(ctx, req, req.Args[0], targetName, req.Args[1], req.Args[2])
}

func addClock(ctx context.Context, req *Request, channelArg, target, offsetArg, text string) error {
	if _, ok, err := req.Authorize(ctx, tmhi.PermCreateClocks, "create clocks, timers or stopwatches"); !ok {
		return err
	}
	channelID, ok, err := findChannel(ctx, req, channelArg)
	if !ok {
		return err
	}
	offset, err := clock.ParseOffset(offsetArg)
	if err != nil {
		req.Reply(ctx, "Sorry, I couldn't figure out what the utcOffset is. Try something like +13 or -3:30")
		return nil
	}
	messageID, ok, err := widgetTarget(ctx, req, channelID, target, "Creating clock...")
	if !ok {
		return err
	}
	return startWidget(ctx, req, clock.Widget{
		Kind:      clock.KindClock,
		GuildID:   req.Guild.ID,
		ChannelID: channelID,
		MessageID: messageID,
		Text:      text,
		UTCOffset: offset,
	}, "Started clock!")
}

func runAddTimer(ctx context.Context, req *Request) error {
	if len(req.Args) != 4 && len(req.Args) != 5 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermCreateClocks, "create clocks, timers or stopwatches"); !ok {
		return err
	}
	channelID, ok, err := findChannel(ctx, req, req.Args[0])
	if !ok {
		return err
	}
	now := req.Now()
	finish, err := clock.ParseTime(req.Args[2], now)
	if err != nil {
		req.Reply(ctx, "Sorry, I couldn't understand the finish time. Try `2030-01-01T00:00:00Z`, `90m` or `tomorrow at 6pm`")
		return nil
	}
	if !finish.After(now) {
		req.Reply(ctx, "Sorry, that finish time has already passed")
		return nil
	}
	messageID, ok, err := widgetTarget(ctx, req, channelID, req.Args[1], "Creating timer...")
	if !ok {
		return err
	}
	w := clock.Widget{
		Kind:      clock.KindTimer,
		GuildID:   req.Guild.ID,
		ChannelID: channelID,
		MessageID: messageID,
		Text:      req.Args[3],
		Start:     now,
		Finish:    finish,
	}
	if len(req.Args) == 5 {
		w.FinishMessage = req.Args[4]
	}
	return startWidget(ctx, req, w, "Started timer!")
}

func runAddStopwatch(ctx context.Context, req *Request) error {
	if len(req.Args) != 3 && len(req.Args) != 4 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermCreateClocks, "create clocks, timers or stopwatches"); !ok {
		return err
	}
	channelID, ok, err := findChannel(ctx, req, req.Args[0])
	if !ok {
		return err
	}
	start := req.Now()
	if len(req.Args) == 4 {
		if start, err = clock.ParseTime(req.Args[3], start); err != nil {
			req.Reply(ctx, "Sorry, I couldn't understand the start time. Try `2030-01-01T00:00:00Z`, `-90m` or `yesterday at 6pm`")
			return nil
		}
	}
	messageID, ok, err := widgetTarget(ctx, req, channelID, req.Args[1], "Creating stopwatch...")
	if !ok {
		return err
	}
	return startWidget(ctx, req, clock.Widget{
		Kind:      clock.KindStopwatch,
		GuildID:   req.Guild.ID,
		ChannelID: channelID,
		MessageID: messageID,
		Text:      req.Args[2],
		Start:     start,
	}, "Started stopwatch!")
}

func runDeleteClock(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 && len(req.Args) != 2 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermCreateClocks, "delete clocks, timers or stopwatches"); !ok {
		return err
	}
	channelID := snowflake(req.Args[0])
	messageID := ""
	if len(req.Args) == 2 {
		messageID = snowflake(req.Args[1])
	}
	if channelID == "" || (len(req.Args) == 2 && messageID == "") {
		req.Usage(ctx)
		return nil
	}
	id := clock.Key(req.Guild.ID, channelID, messageID)
	stopped := req.Clocks.Stop(id)
	deleted, err := req.Store.DeleteClock(ctx, id)
	if err != nil {
		return err
	}
	if !stopped && !deleted {
		req.Reply(ctx, "Sorry, I couldn't find a clock there")
		return nil
	}
	req.Reply(ctx, "Deleted clock! It will no longer update")
	return nil
}

func findChannel(ctx context.Context, req *Request, arg string) (string, bool, error) {
	id := snowflake(arg)
	err := tmhi.ErrNotFound
	if id != "" {
		err = req.Session.Channel(ctx, req.Guild.ID, id)
	}
	if errors.Is(err, tmhi.ErrNotFound) {
		req.Reply(ctx, "Sorry, I couldn't find that channel")
		return "", false, nil
	}
	return id, err == nil, err
}

// widgetTarget resolves where a widget renders: a new message posted with
// placeholder, the channel name, or an existing bot message.
func widgetTarget(ctx context.Context, req *Request, channelID, target, placeholder string) (string, bool, error) {
	switch strings.ToLower(target) {
	case targetName:
		return "", true, nil
	case targetNew, "create":
		id, err := req.Session.Send(ctx, channelID, placeholder)
		if err != nil {
			return "", false, err
		}
		return id, true, nil
	}
	id := snowflake(target)
	err := tmhi.ErrNotFound
	if id != "" {
		err = req.Session.BotMessage(ctx, channelID, id)
	}
	if errors.Is(err, tmhi.ErrNotFound) {
		req.Reply(ctx, "Sorry, I couldn't find that message. I can only update messages I wrote")
		return "", false, nil
	}
	return id, err == nil, err
}

func startWidget(ctx context.Context, req *Request, w clock.Widget, done string) error {
	if err := w.Validate(); err != nil {
		req.Replyf(ctx, "Sorry, %v", err)
		return nil
	}
	if err := req.Store.StoreClock(ctx, w); err != nil {
		return err
	}
	if err := req.Clocks.Start(ctx, w); err != nil {
		return err
	}
	req.Reply(ctx, done)
	return nil
}
