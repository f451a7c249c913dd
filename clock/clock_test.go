package clock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmhi/discord-bot/tmhi"
)

type fakeTarget struct {
	mu      sync.Mutex
	edits   []string
	renames []string
	err     error
	pushed  chan struct{}
}

func newFakeTarget() *fakeTarget { return &fakeTarget{pushed: make(chan struct{}, 16)} }

func (f *fakeTarget) EditMessage(_ context.Context, channelID, messageID, content string) error {
	f.mu.Lock()
	f.edits = append(f.edits, content)
	err := f.err
	f.mu.Unlock()
	f.pushed <- struct{}{}
	return err
}

func (f *fakeTarget) RenameChannel(_ context.Context, channelID, name string) error {
	f.mu.Lock()
	f.renames = append(f.renames, name)
	err := f.err
	f.mu.Unlock()
	f.pushed <- struct{}{}
	return err
}

func waitPush(t *testing.T, f *fakeTarget) {
	t.Helper()
	select {
	case <-f.pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for widget update")
	}
}

var base = time.Date(2024, 3, 10, 12, 34, 56, 0, time.UTC)

func TestRenderClock(t *testing.T) {
	w := Widget{Kind: KindClock, UTCOffset: 2}
	text, done := w.Render(base)
	assert.Equal(t, "14:34 UTC+2", text)
	assert.False(t, done)

	w = Widget{Kind: KindClock, UTCOffset: -3.5, Text: "NYC-ish {{date}} {{time}}"}
	text, _ = w.Render(base)
	assert.Equal(t, "NYC-ish 2024-03-10 09:04", text)
}

func TestRenderTimer(t *testing.T) {
	w := Widget{Kind: KindTimer, Finish: base.Add(26*time.Hour + 5*time.Minute), Text: "Ends in {{remaining}}"}
	text, done := w.Render(base)
	assert.Equal(t, "Ends in 1d 2h 5m", text)
	assert.False(t, done)

	text, done = w.Render(base.Add(27 * time.Hour))
	assert.Equal(t, defaultFinishText, text)
	assert.True(t, done)

	w.FinishMessage = "Event started!"
	text, _ = w.Render(base.Add(27 * time.Hour))
	assert.Equal(t, "Event started!", text)
}

func TestRenderStopwatch(t *testing.T) {
	w := Widget{Kind: KindStopwatch, Start: base.Add(-90 * time.Minute)}
	text, done := w.Render(base)
	assert.Equal(t, "1h 30m", text)
	assert.False(t, done)

	w.Finish = base.Add(-30 * time.Minute)
	text, done = w.Render(base)
	assert.Equal(t, "1h", text)
	assert.True(t, done)
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                         "0m",
		59 * time.Second:          "0m",
		61 * time.Minute:          "1h 1m",
		48 * time.Hour:            "2d",
		-5 * time.Minute:          "5m",
		25*time.Hour + time.Minute: "1d 1h 1m",
	}
	for d, want := range cases {
		assert.Equal(t, want, FormatDuration(d), d.String())
	}
}

func TestNextBoundary(t *testing.T) {
	assert.Equal(t, time.Date(2024, 3, 10, 12, 35, 0, 0, time.UTC), NextBoundary(base, time.Minute))
	assert.Equal(t, time.Date(2024, 3, 10, 12, 40, 0, 0, time.UTC), NextBoundary(base, 10*time.Minute))
	exact := time.Date(2024, 3, 10, 12, 40, 0, 0, time.UTC)
	assert.Equal(t, exact.Add(10*time.Minute), NextBoundary(exact, 10*time.Minute))
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Widget{Kind: KindTimer, GuildID: "g", ChannelID: "c"}.Validate(), ErrMissingFinish)
	assert.ErrorIs(t, Widget{Kind: KindStopwatch, GuildID: "g", ChannelID: "c"}.Validate(), ErrMissingStart)
	assert.Error(t, Widget{Kind: KindClock}.Validate())
	assert.NoError(t, Widget{Kind: KindClock, GuildID: "g", ChannelID: "c"}.Validate())
	_, err := ParseKind("sundial")
	assert.Error(t, err)
	k, err := ParseKind("Timer")
	require.NoError(t, err)
	assert.Equal(t, KindTimer, k)
}

func TestIntervalByTarget(t *testing.T) {
	assert.Equal(t, time.Minute, Widget{MessageID: "m"}.Interval())
	assert.Equal(t, 10*time.Minute, Widget{}.Interval())
}

func TestManagerStartStop(t *testing.T) {
	target := newFakeTarget()
	ticks := make(chan time.Time)
	m := NewManager(target,
		WithClock(func() time.Time { return base }),
		WithAfter(func(time.Duration) <-chan time.Time { return ticks }),
	)
	w := Widget{Kind: KindClock, GuildID: "g", ChannelID: "c", MessageID: "m"}
	require.NoError(t, m.Start(context.Background(), w))
	waitPush(t, target)
	assert.Equal(t, 1, m.Len())

	ticks <- base
	waitPush(t, target)

	got, ok := m.Get(w.ID())
	require.True(t, ok)
	assert.Equal(t, w, got)

	assert.True(t, m.Stop(w.ID()))
	assert.False(t, m.Stop(w.ID()), "second stop is a no-op")
	m.StopAll()
	assert.Equal(t, 0, m.Len())

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.Len(t, target.edits, 2)
	assert.Empty(t, target.renames)
}

func TestManagerReplacesSameTarget(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target,
		WithClock(func() time.Time { return base }),
		WithAfter(func(time.Duration) <-chan time.Time { return make(chan time.Time) }),
	)
	w := Widget{Kind: KindClock, GuildID: "g", ChannelID: "c"}
	require.NoError(t, m.Start(context.Background(), w))
	waitPush(t, target)
	w.UTCOffset = 1
	require.NoError(t, m.Start(context.Background(), w))
	waitPush(t, target)
	assert.Equal(t, 1, m.Len())
	m.StopAll()
}

func TestManagerTimerFinishes(t *testing.T) {
	target := newFakeTarget()
	finished := make(chan Widget, 1)
	m := NewManager(target,
		WithClock(func() time.Time { return base }),
		OnFinish(func(_ context.Context, w Widget) { finished <- w }),
	)
	w := Widget{Kind: KindTimer, GuildID: "g", ChannelID: "c", Finish: base.Add(-time.Minute), FinishMessage: "done"}
	require.NoError(t, m.Start(context.Background(), w))
	waitPush(t, target)
	select {
	case got := <-finished:
		assert.Equal(t, w.ID(), got.ID())
	case <-time.After(2 * time.Second):
		t.Fatal("OnFinish not called")
	}
	m.StopAll()
	assert.Equal(t, []string{"done"}, target.renames)
}

func TestManagerTargetGone(t *testing.T) {
	target := newFakeTarget()
	target.err = fmt.Errorf("edit: %w", tmhi.ErrNotFound)
	gone := make(chan Widget, 1)
	m := NewManager(target,
		WithClock(func() time.Time { return base }),
		OnGone(func(_ context.Context, w Widget) { gone <- w }),
	)
	w := Widget{Kind: KindClock, GuildID: "g", ChannelID: "c", MessageID: "m"}
	require.NoError(t, m.Start(context.Background(), w))
	select {
	case <-gone:
	case <-time.After(2 * time.Second):
		t.Fatal("OnGone not called")
	}
	m.StopAll()
	assert.Equal(t, 0, m.Len())
}

func TestManagerRejectsInvalid(t *testing.T) {
	m := NewManager(newFakeTarget())
	assert.Error(t, m.Start(context.Background(), Widget{Kind: KindTimer, GuildID: "g", ChannelID: "c"}))
	assert.Equal(t, 0, m.Len())
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("90m", base)
	require.NoError(t, err)
	assert.Equal(t, base.Add(90*time.Minute), got)

	got, err = ParseTime("2024-12-24T18:00:00Z", base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 24, 18, 0, 0, 0, time.UTC), got)

	got, err = ParseTime("in 2 hours", base)
	require.NoError(t, err)
	assert.Equal(t, base.Add(2*time.Hour), got)

	_, err = ParseTime("", base)
	assert.Error(t, err)
	_, err = ParseTime("qwertyuiop", base)
	assert.Error(t, err)
}

func TestParseOffset(t *testing.T) {
	cases := map[string]float64{"2": 2, "-3.5": -3.5, "+5:30": 5.5, "UTC+2": 2, "utc": 0, "GMT-1": -1}
	for in, want := range cases {
		got, err := ParseOffset(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	for _, in := range []string{"abc", "+15", "3:75"} {
		_, err := ParseOffset(in)
		assert.Error(t, err, in)
	}
}
