package tmhi

import (
	"strconv"
	"strings"
)

// Setting ids known to the bot. The catalog itself lives in the settings table.
const (
	SettingCommandPrefix        = "COMMAND_PREFIX"
	SettingDeleteCommandMessage = "DELETE_COMMAND_MESSAGE"
	SettingBotOwnerGodMode      = "BOT_OWNER_GOD_MODE"
	SettingWelcomeMessage       = "WELCOME_MESSAGE"
	SettingWelcomeChannel       = "WELCOME_CHANNEL"
	SettingInitiateRole         = "INITIATE_ROLE"
	SettingInitiateMessage      = "INITIATE_MESSAGE"
	SettingCommandAliases       = "COMMAND_ALIASES"
)

// UseDefault is the raw value that clears a guild override.
const UseDefault = "default"

// falsy values for BoolValue, compared case-insensitively.
var falsy = map[string]struct{}{"0": {}, "false": {}, "off": {}, "no": {}, "n": {}, "": {}}

// Setting is a catalog entry (id, name, comment, default) optionally
// overridden per guild. A nil raw value, an empty one or UseDefault all
// mean "use the catalog default".
type Setting struct {
	ID           string
	Name         string
	DefaultValue *string
	GuildID      string

	comment      string
	guildComment *string
	raw          *string
}

// NewSetting builds a catalog entry with no override.
func NewSetting(id, name, comment string, defaultValue *string, guildID string) *Setting {
	return &Setting{ID: id, Name: name, comment: comment, DefaultValue: defaultValue, GuildID: guildID}
}

// Clone returns an independent copy, e.g. to bind a catalog row to a guild.
func (s *Setting) Clone() *Setting {
	c := *s
	return &c
}

// Value returns the effective value and whether one exists.
func (s *Setting) Value() (string, bool) {
	if s.raw == nil || *s.raw == "" || *s.raw == UseDefault {
		if s.DefaultValue == nil {
			return "", false
		}
		return *s.DefaultValue, true
	}
	return *s.raw, true
}

// String returns the effective value or "".
func (s *Setting) String() string {
	v, _ := s.Value()
	return v
}

// RawValue returns the guild override as stored (nil when absent).
func (s *Setting) RawValue() *string { return s.raw }

// SetValue replaces the override; strings are trimmed.
func (s *Setting) SetValue(v *string) {
	if v == nil {
		s.raw = nil
		return
	}
	t := strings.TrimSpace(*v)
	s.raw = &t
}

// Set is SetValue for a plain string.
func (s *Setting) Set(v string) { s.SetValue(&v) }

// IsDefault reports whether the override is absent or the UseDefault marker.
// Such settings are deleted rather than written when stored.
func (s *Setting) IsDefault() bool {
	return s.raw == nil || *s.raw == UseDefault
}

// Comment returns the guild comment when set, else the catalog comment.
func (s *Setting) Comment() string {
	if s.guildComment != nil {
		return *s.guildComment
	}
	return s.comment
}

// SetComment sets the guild-level comment.
func (s *Setting) SetComment(c string) { s.guildComment = &c }

// GuildComment returns the guild-level comment, nil when the catalog one applies.
func (s *Setting) GuildComment() *string { return s.guildComment }

// NumberValue parses the effective value as a float.
func (s *Setting) NumberValue() (float64, bool) {
	v, ok := s.Value()
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// BoolValue is false when no value exists or the value is one of
// 0/false/off/no/n/"" in any case; everything else is true.
func (s *Setting) BoolValue() bool {
	v, ok := s.Value()
	if !ok {
		return false
	}
	_, isFalse := falsy[strings.ToLower(v)]
	return !isFalse
}

// Enabled is an alias for BoolValue.
func (s *Setting) Enabled() bool { return s.BoolValue() }

// IDValue strips every non-digit from the effective value, turning a
// mention like <#1234> or <@&99> into the bare snowflake.
func (s *Setting) IDValue() string {
	v, _ := s.Value()
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Settings is the resolved settings view of one guild, keyed by setting id.
type Settings map[string]*Setting

// Get returns the setting for id, or a detached empty setting so callers can
// read values without nil checks.
func (s Settings) Get(id string) *Setting {
	if st, ok := s[id]; ok {
		return st
	}
	return &Setting{ID: id}
}

// Lookup returns the setting and whether it exists in the catalog.
func (s Settings) Lookup(id string) (*Setting, bool) {
	st, ok := s[id]
	return st, ok
}
