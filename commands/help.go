package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmhi/discord-bot/tmhi"
)

// embeds carry at most this many fields
const maxEmbedFields = 25

func runHelp(ctx context.Context, req *Request) error {
	var embeds []Embed
	if req.Unrecognized == "" && len(req.Args) > 0 {
		aliases := ParseAliases(req.Settings.Get(tmhi.SettingCommandAliases).String())
		c, ok := req.Registry.Lookup(req.Args[0], aliases)
		if !ok {
			req.Replyf(ctx, "Sorry, I don't know the command `%s`. Try `%shelp`.", req.Args[0], req.Prefix)
			return nil
		}
		embeds = []Embed{commandEmbed(req, c)}
	} else {
		embeds = helpEmbeds(req)
	}

	for _, e := range embeds {
		if err := req.Session.SendDMEmbed(ctx, req.Message.Author.ID, e); err != nil {
			req.Log.Warn("help DM failed", slog.Any("err", err))
			req.Reply(ctx, "I couldn't send you a direct message. Do you allow DMs from server members?")
			return nil
		}
	}

	switch {
	case req.Unrecognized != "":
		req.Replyf(ctx, "Sorry, I don't know `%s`. I sent you a DM with the commands I know.", req.Unrecognized)
	case req.Settings.Get(tmhi.SettingDeleteCommandMessage).BoolValue():
		// the trigger is about to vanish; a reply would dangle
	default:
		req.Reply(ctx, "Sent you a DM with help.")
	}
	return nil
}

func helpEmbeds(req *Request) []Embed {
	cmds := req.Registry.Commands()
	var fields []EmbedField
	for _, c := range cmds {
		fields = append(fields, EmbedField{Name: req.Prefix + c.Syntax, Value: describe(c)})
	}
	desc := fmt.Sprintf("Commands start with `%s`. Put arguments containing spaces in quotes.", req.Prefix)
	if req.Config.DocsURL != "" {
		desc += "\nDocumentation: " + req.Config.DocsURL
	}

	var embeds []Embed
	for len(fields) > 0 {
		n := min(len(fields), maxEmbedFields)
		e := Embed{Fields: fields[:n]}
		if len(embeds) == 0 {
			e.Title = "Commands"
			e.URL = req.Config.CommandDocsURL
			e.Description = desc
		}
		embeds = append(embeds, e)
		fields = fields[n:]
	}
	if len(embeds) > 0 && req.Config.Version != "" {
		embeds[len(embeds)-1].Footer = "Version " + req.Config.Version
	}
	return embeds
}

func commandEmbed(req *Request, c *Command) Embed {
	return Embed{
		Title:       c.Name,
		URL:         req.Config.CommandDocsURL,
		Description: describe(c),
		Fields:      []EmbedField{{Name: "Syntax", Value: "`" + req.Prefix + c.Syntax + "`"}},
	}
}

func describe(c *Command) string {
	if len(c.Aliases) == 0 {
		return c.Description
	}
	return c.Description + "\nAliases: " + strings.Join(c.Aliases, ", ")
}

func runVersion(ctx context.Context, req *Request) error {
	v := req.Config.Version
	if v == "" {
		v = "dev"
	}
	req.Replyf(ctx, "T-MHI bot version %s", v)
	return nil
}
