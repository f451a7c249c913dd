package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var parser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseTime resolves user input to an absolute instant relative to now.
// Accepted forms: RFC3339, Go durations ("90m", "2h30m", meaning now+d),
// and natural language ("in 2 hours", "tomorrow at 18:00").
func ParseTime(input string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}
	r, err := parser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand time %q", s)
	}
	return r.Time, nil
}

// ParseOffset accepts "2", "-3.5", "+5:30", "UTC+2" as an hour offset.
func ParseOffset(input string) (float64, error) {
	s := strings.TrimSpace(strings.ToUpper(input))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "UTC"), "GMT")
	if s == "" {
		return 0, nil
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign, s = -1, s[1:]
	case '+':
		s = s[1:]
	}
	var hours float64
	if h, m, ok := strings.Cut(s, ":"); ok {
		hh, err := strconv.Atoi(h)
		if err != nil {
			return 0, fmt.Errorf("invalid offset %q", input)
		}
		mm, err := strconv.Atoi(m)
		if err != nil || mm < 0 || mm >= 60 {
			return 0, fmt.Errorf("invalid offset %q", input)
		}
		hours = float64(hh) + float64(mm)/60
	} else {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid offset %q", input)
		}
		hours = f
	}
	if hours < 0 || hours > 14 {
		return 0, fmt.Errorf("offset %q out of range", input)
	}
	return sign * hours, nil
}
