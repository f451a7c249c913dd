package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/tmhi/discord-bot/tmhi"
)

// ErrRenameThrottled is returned when a channel has used up its renames for
// the current window.
var ErrRenameThrottled = errors.New("channel rename throttled")

var unknownCodes = map[int]bool{
	discordgo.ErrCodeUnknownChannel: true,
	discordgo.ErrCodeUnknownGuild:   true,
	discordgo.ErrCodeUnknownMember:  true,
	discordgo.ErrCodeUnknownMessage: true,
	discordgo.ErrCodeUnknownRole:    true,
	discordgo.ErrCodeUnknownUser:    true,
	discordgo.ErrCodeUnknownEmoji:   true,
}

// mapErr wraps platform "unknown X" failures in tmhi.ErrNotFound so callers
// can tell a vanished target from a transient error.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil && unknownCodes[rest.Message.Code] {
			return fmt.Errorf("%s: %w: %s", op, tmhi.ErrNotFound, rest.Message.Message)
		}
		if rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", op, tmhi.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
