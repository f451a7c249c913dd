// Package clock implements the self-updating display widgets: wall clocks,
// countdown timers and stopwatches. A widget renders either into a message
// it owns or into a channel name, and is re-rendered on minute boundaries
// (messages) or ten-minute boundaries (channel names, which the platform
// rate limits heavily).
package clock

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tmhi/discord-bot/tmhi"
)

// Kind tags the widget variant.
type Kind string

const (
	KindClock     Kind = "clock"
	KindTimer     Kind = "timer"
	KindStopwatch Kind = "stopwatch"
)

// ParseKind validates a stored kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindClock, KindTimer, KindStopwatch:
		return k, nil
	}
	return "", fmt.Errorf("unknown widget kind %q", s)
}

var (
	ErrMissingFinish = errors.New("timer needs a finish time")
	ErrMissingStart  = errors.New("stopwatch needs a start time")
)

// Widget is one persisted clock, timer or stopwatch. MessageID is empty for
// channel-name widgets.
type Widget struct {
	Kind      Kind
	GuildID   string
	ChannelID string
	MessageID string

	// Text is a template; see Render for placeholders.
	Text string
	// UTCOffset in hours, clocks only.
	UTCOffset float64

	Start         time.Time
	Finish        time.Time
	FinishMessage string
}

// Key builds the registry id for a widget target.
func Key(guildID, channelID, messageID string) string {
	return guildID + "/" + channelID + "/" + messageID
}

// ID identifies the widget by its target.
func (w Widget) ID() string { return Key(w.GuildID, w.ChannelID, w.MessageID) }

// InMessage reports whether the widget renders into a message.
func (w Widget) InMessage() bool { return w.MessageID != "" }

// Interval between re-renders.
func (w Widget) Interval() time.Duration {
	if w.InMessage() {
		return time.Minute
	}
	return 10 * time.Minute
}

// Validate checks the per-kind required fields.
func (w Widget) Validate() error {
	if w.GuildID == "" || w.ChannelID == "" {
		return errors.New("widget needs a guild and a channel")
	}
	switch w.Kind {
	case KindClock:
	case KindTimer:
		if w.Finish.IsZero() {
			return ErrMissingFinish
		}
	case KindStopwatch:
		if w.Start.IsZero() {
			return ErrMissingStart
		}
	default:
		return fmt.Errorf("unknown widget kind %q", w.Kind)
	}
	return nil
}

const (
	defaultClockText     = "{{time}} {{zone}}"
	defaultTimerText     = "{{remaining}}"
	defaultStopwatchText = "{{elapsed}}"
	defaultFinishText    = "Time's up!"
)

// Render produces the widget text at now and reports whether the widget has
// reached its final state.
//
// Placeholders: {{time}}, {{date}}, {{zone}} for clocks; {{remaining}} and
// {{finish}} for timers; {{elapsed}} and {{start}} for stopwatches.
func (w Widget) Render(now time.Time) (string, bool) {
	switch w.Kind {
	case KindTimer:
		remaining := w.Finish.Sub(now)
		if remaining <= 0 {
			return firstNonEmpty(w.FinishMessage, defaultFinishText), true
		}
		return tmhi.Render(firstNonEmpty(w.Text, defaultTimerText), map[string]string{
			"remaining": FormatDuration(remaining),
			"finish":    w.Finish.UTC().Format("2006-01-02 15:04 UTC"),
		}), false
	case KindStopwatch:
		end, done := now, false
		if !w.Finish.IsZero() && !now.Before(w.Finish) {
			end, done = w.Finish, true
		}
		text := tmhi.Render(firstNonEmpty(w.Text, defaultStopwatchText), map[string]string{
			"elapsed": FormatDuration(end.Sub(w.Start)),
			"start":   w.Start.UTC().Format("2006-01-02 15:04 UTC"),
		})
		if done && w.FinishMessage != "" {
			text = w.FinishMessage
		}
		return text, done
	default:
		local := now.UTC().Add(time.Duration(w.UTCOffset * float64(time.Hour)))
		return tmhi.Render(firstNonEmpty(w.Text, defaultClockText), map[string]string{
			"time": local.Format("15:04"),
			"date": local.Format("2006-01-02"),
			"zone": FormatOffset(w.UTCOffset),
		}), false
	}
}

// FormatDuration renders d at minute resolution, e.g. "2d 3h 4m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	mins := int64(d / time.Minute)
	days, mins := mins/(24*60), mins%(24*60)
	hours, mins := mins/60, mins%60
	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	return strings.Join(parts, " ")
}

// FormatOffset renders an hour offset as UTC, UTC+2, UTC-3:30.
func FormatOffset(hours float64) string {
	if hours == 0 {
		return "UTC"
	}
	sign := "+"
	if hours < 0 {
		sign = "-"
	}
	total := int(math.Round(math.Abs(hours) * 60))
	h, m := total/60, total%60
	if m == 0 {
		return fmt.Sprintf("UTC%s%d", sign, h)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, h, m)
}

// NextBoundary returns the first multiple of interval strictly after now.
func NextBoundary(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
