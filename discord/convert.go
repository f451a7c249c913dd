package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/tmhi/discord-bot/commands"
	"github.com/tmhi/discord-bot/tmhi"
)

func toGuild(g *discordgo.Guild) tmhi.Guild {
	out := tmhi.Guild{ID: g.ID, Name: g.Name, OwnerID: g.OwnerID}
	if t, err := discordgo.SnowflakeTimestamp(g.ID); err == nil {
		out.CreatedAt = t
	}
	return out
}

func toRole(guildID string, r *discordgo.Role) tmhi.Role {
	return tmhi.Role{
		ID:          r.ID,
		GuildID:     guildID,
		Name:        r.Name,
		Color:       r.Color,
		Permissions: r.Permissions,
	}
}

func toRoles(guildID string, roles []*discordgo.Role) []tmhi.Role {
	out := make([]tmhi.Role, 0, len(roles))
	for _, r := range roles {
		if r != nil {
			out = append(out, toRole(guildID, r))
		}
	}
	return out
}

// toMember converts a member; the guild id is passed because REST member
// payloads omit it.
func toMember(guildID string, m *discordgo.Member) tmhi.GuildMember {
	out := tmhi.GuildMember{GuildID: guildID, RoleIDs: append([]string(nil), m.Roles...)}
	if m.User != nil {
		out.ID = m.User.ID
		out.Bot = m.User.Bot
	}
	out.DisplayName = displayName(m.Nick, m.User)
	return out
}

func displayName(nick string, u *discordgo.User) string {
	switch {
	case nick != "":
		return nick
	case u == nil:
		return ""
	case u.GlobalName != "":
		return u.GlobalName
	}
	return u.Username
}

// toMessage converts an inbound message. Message events carry a partial
// member without its user, so the author fills in the identity.
func toMessage(m *discordgo.Message) commands.Message {
	out := commands.Message{ID: m.ID, ChannelID: m.ChannelID, GuildID: m.GuildID, Content: m.Content}
	if m.Author == nil {
		return out
	}
	out.Author = tmhi.GuildMember{ID: m.Author.ID, GuildID: m.GuildID, Bot: m.Author.Bot}
	nick := ""
	if m.Member != nil {
		nick = m.Member.Nick
		out.Author.RoleIDs = append([]string(nil), m.Member.Roles...)
	}
	out.Author.DisplayName = displayName(nick, m.Author)
	return out
}

func toEmbed(e commands.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{Title: e.Title, URL: e.URL, Description: e.Description}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}
