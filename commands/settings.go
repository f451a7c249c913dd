package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tmhi/discord-bot/tmhi"
)

func runSet(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermAdmin, "change settings"); !ok {
		return err
	}
	id := strings.ToUpper(req.Args[0])
	s, ok := req.Settings.Lookup(id)
	if !ok {
		req.Replyf(ctx, "Sorry, there is no setting called %s. Try `%ssettings`.", id, req.Prefix)
		return nil
	}
	if len(req.Args) == 1 {
		req.Replyf(ctx, "%s is %s", id, showValue(s))
		return nil
	}

	s.SetValue(settingArg(strings.Join(req.Args[1:], " ")))
	if err := req.Save(ctx, s); err != nil {
		return err
	}
	if s.IsDefault() {
		req.Replyf(ctx, "Reset %s to its default (%s)", id, showValue(s))
		return nil
	}
	req.Replyf(ctx, "Set %s to %s", id, showValue(s))
	return nil
}

func runSettings(ctx context.Context, req *Request) error {
	ids := make([]string, 0, len(req.Settings))
	for id := range req.Settings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Server settings:\n")
	for _, id := range ids {
		s := req.Settings[id]
		fmt.Fprintf(&b, "**%s** %s", id, showValue(s))
		if s.IsDefault() {
			b.WriteString(" (default)")
		}
		if c := s.Comment(); c != "" {
			b.WriteString(" - " + c)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Change one with `%sset SETTING value`.", req.Prefix)
	req.Reply(ctx, b.String())
	return nil
}

func showValue(s *tmhi.Setting) string {
	v, ok := s.Value()
	if !ok {
		return "unset"
	}
	return "`" + v + "`"
}

func runSetCommandPrefix(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermAdmin, "change the command prefix"); !ok {
		return err
	}
	s, err := catalogSetting(req, tmhi.SettingCommandPrefix)
	if err != nil {
		return err
	}
	s.SetValue(settingArg(req.Args[0]))
	if err := req.Save(ctx, s); err != nil {
		return err
	}
	if p, ok := s.Value(); ok && p != "" {
		req.Replyf(ctx, "Command prefix is now `%s`", p)
		return nil
	}
	req.Reply(ctx, "Command prefix reset. Mention me to use commands.")
	return nil
}

func runSetDeleteCommandMessage(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermAdmin, "change whether command messages are deleted"); !ok {
		return err
	}
	s, err := catalogSetting(req, tmhi.SettingDeleteCommandMessage)
	if err != nil {
		return err
	}
	s.SetValue(settingArg(req.Args[0]))
	if err := req.Save(ctx, s); err != nil {
		return err
	}
	if s.BoolValue() {
		req.Reply(ctx, "Command messages will be deleted after they run")
	} else {
		req.Reply(ctx, "Command messages will be kept")
	}
	return nil
}

// settingArg maps the reset keywords `null` and `default` to a missing
// override.
func settingArg(v string) *string {
	if strings.EqualFold(v, "null") || strings.EqualFold(v, tmhi.UseDefault) {
		return nil
	}
	return &v
}

// catalogSetting returns a setting the migrations seed; its absence means a
// broken catalog, not a user error.
func catalogSetting(req *Request, id string) (*tmhi.Setting, error) {
	s, ok := req.Settings.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("setting %s missing from catalog", id)
	}
	return s, nil
}
