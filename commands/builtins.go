package commands

import (
	"strings"

	"github.com/tmhi/discord-bot/tmhi"
)

// Builtins returns a registry holding every built-in command.
func Builtins() *Registry {
	r := NewRegistry()
	r.MustRegister(
		&Command{Name: "help", Syntax: "help [command]", Description: "DMs you the command list, or details of one command.", Run: runHelp},
		&Command{Name: "version", Syntax: "version", Description: "Shows the running bot version.", Run: runVersion},

		&Command{Name: "set", Syntax: "set SETTING [value]", Description: "Shows or changes a server setting. Use `default` or `null` to reset it.", Run: runSet},
		&Command{Name: "settings", Syntax: "settings", Description: "Lists every server setting and its value.", Run: runSettings},
		&Command{Name: "setCommandPrefix", Aliases: []string{"setPrefix"}, Syntax: "setCommandPrefix prefix|null", Description: "Changes the command prefix. Mentioning the bot always works.", Run: runSetCommandPrefix},
		&Command{Name: "setDeleteCommandMessage", Aliases: []string{"setDeleteCommand"}, Syntax: "setDeleteCommandMessage on|off|null", Description: "Deletes command messages after they run.", Run: runSetDeleteCommandMessage},

		&Command{Name: "getPermissions", Aliases: []string{"permissions"}, Syntax: "getPermissions [@member]", Description: "Lists the permissions you (or a member) hold.", Run: runGetPermissions},
		&Command{Name: "listPermissions", Syntax: "listPermissions", Description: "Lists the permissions defined on this server.", Run: runListPermissions},
		&Command{Name: "createPermission", Syntax: `createPermission PERMISSION_ID ["name"] ["comment"]`, Description: "Defines a new permission.", Run: runCreatePermission},
		&Command{Name: "grantRolePermission", Syntax: `grantRolePermission @role PERMISSION_ID ["comment"]`, Description: "Grants a permission to everyone with a role.", Run: runGrantRolePermission},
		&Command{Name: "revokeRolePermission", Syntax: "revokeRolePermission @role PERMISSION_ID", Description: "Takes a permission away from a role.", Run: runRevokeRolePermission},
		&Command{Name: "grantMemberPermission", Syntax: `grantMemberPermission @member PERMISSION_ID ["comment"]`, Description: "Grants a permission to one member.", Run: runGrantMemberPermission},
		&Command{Name: "revokeMemberPermission", Syntax: "revokeMemberPermission @member PERMISSION_ID", Description: "Takes a directly granted permission away from a member.", Run: runRevokeMemberPermission},

		&Command{Name: "createPoll", Aliases: []string{"poll"}, Syntax: `createPoll "poll description" [reaction1] [reaction2] ...`, Description: "Posts a poll with reactions to vote with (default 👍 and 👎).", Run: runCreatePoll},
		&Command{Name: "initiate", Syntax: "initiate @member", Description: "Gives a new member the INITIATE_ROLE and sends them the INITIATE_MESSAGE.", Run: runInitiate},
		&Command{Name: "setTimezone", Syntax: "setTimezone TIMEZONE", Description: "Stores your timezone, e.g. NZST or Europe/Berlin.", Run: runSetTimezone},
		&Command{Name: "linkWiki", Syntax: "linkWiki @member WIKI_ID email", Description: "Links a member to their wiki account.", Run: runLinkWiki},

		&Command{Name: "addClock", Syntax: `addClock #channel [messageId] utcOffset "text"`, Description: "Shows a live clock in a message. Text may use {{time}}, {{date}} and {{zone}}.", Run: runAddClock},
		&Command{Name: "addClockChannel", Syntax: `addClockChannel #channel utcOffset "text"`, Description: "Shows a live clock as a channel name, updated every 10 minutes.", Run: runAddClockChannel},
		&Command{Name: "addTimer", Syntax: `addTimer #channel new|name|messageId finish "text" ["finish message"]`, Description: "Counts down to a time. Text may use {{remaining}} and {{finish}}.", Run: runAddTimer},
		&Command{Name: "addStopwatch", Syntax: `addStopwatch #channel new|name|messageId "text" [start]`, Description: "Counts up from a time. Text may use {{elapsed}} and {{start}}.", Run: runAddStopwatch},
		&Command{Name: "deleteClock", Aliases: []string{"deleteTimer", "deleteStopwatch"}, Syntax: "deleteClock #channel [messageId]", Description: "Stops and removes a clock, timer or stopwatch.", Run: runDeleteClock},
	)
	return r
}

// snowflake strips everything but digits, turning <@!1>, <@&1> or <#1> into 1.
func snowflake(arg string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, arg)
}

// permissionArg normalises a typed permission id for the request's guild.
func permissionArg(req *Request, arg string) tmhi.Permission {
	return tmhi.NewPermission(strings.ToUpper(arg), req.Guild.ID, "", "")
}
