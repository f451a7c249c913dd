package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmhi/discord-bot/tmhi"
)

var testNow = time.Date(2030, 5, 4, 12, 0, 0, 0, time.UTC)

type harness struct {
	store   *fakeStore
	session *fakeSession
	clocks  *fakeClocks
	d       *Dispatcher

	guild     tmhi.Guild
	owner     tmhi.GuildMember
	admin     tmhi.GuildMember // holds adminRole, which is granted ADMIN
	user      tmhi.GuildMember // stored, no roles
	adminRole tmhi.Role

	seq int
}

func snowflakeID() string { return gofakeit.Numerify("1#################") }

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{store: newFakeStore(), clocks: newFakeClocks()}
	h.guild = tmhi.Guild{ID: snowflakeID(), Name: gofakeit.Company(), OwnerID: snowflakeID()}
	h.session = newFakeSession(h.guild)
	h.adminRole = tmhi.Role{ID: snowflakeID(), GuildID: h.guild.ID, Name: "Officers"}
	h.session.roles[h.adminRole.ID] = h.adminRole

	h.owner = h.member(h.guild.OwnerID)
	h.admin = h.member(snowflakeID(), h.adminRole.ID)
	h.user = h.member(snowflakeID())

	h.store.seedGuild(h.guild.ID)
	h.store.rolePerms[grant{h.adminRole.ID, tmhi.PermAdmin}] = ""

	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNow(func() time.Time { return testNow }),
	}, opts...)
	h.d = NewDispatcher(h.store, h.session, h.clocks, Config{Version: "1.2.3", DocsURL: "https://docs.example"}, opts...)
	return h
}

// member registers a stored guild member holding roleIDs.
func (h *harness) member(id string, roleIDs ...string) tmhi.GuildMember {
	m := tmhi.GuildMember{ID: id, GuildID: h.guild.ID, DisplayName: gofakeit.Username(), RoleIDs: roleIDs}
	h.session.members[id] = m
	h.store.members[key(h.guild.ID, id)] = m
	return m
}

func (h *harness) mention() string { return "<@" + h.session.botID + ">" }

// send delivers content from author and returns the message id.
func (h *harness) send(author tmhi.GuildMember, content string) string {
	h.seq++
	id := fmt.Sprintf("%d", 500000+h.seq)
	h.d.HandleMessage(context.Background(), Message{
		ID: id, ChannelID: "10", GuildID: h.guild.ID, Content: content, Author: author,
	})
	return id
}

func (h *harness) command(author tmhi.GuildMember, body string) string {
	return h.send(author, h.mention()+" "+body)
}

func TestIgnoresBotsAndDirectMessages(t *testing.T) {
	h := newHarness(t)
	h.store.settingsErr = errBoom // any settings load would produce a reply

	bot := h.user
	bot.Bot = true
	h.send(bot, h.mention()+" version")
	h.d.HandleMessage(context.Background(), Message{ID: "1", ChannelID: "2", Content: h.mention() + " version", Author: h.user})

	assert.Empty(t, h.session.replies)
}

func TestSettingsFailureFailsClosed(t *testing.T) {
	h := newHarness(t)
	h.store.settingsErr = errBoom

	h.command(h.admin, "version")

	assert.Equal(t, []string{replySettingsFailed}, h.session.replies)
}

func TestNonCommandMessagesAreIgnored(t *testing.T) {
	h := newHarness(t)
	h.send(h.user, "hello there")
	h.send(h.user, "!version")
	assert.Empty(t, h.session.replies)
}

func TestEmptyCommandIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	h.send(h.user, h.mention())
	assert.Equal(t, fmt.Sprintf(replyEmptyCommand, h.mention()+" "), h.session.lastReply())
}

func TestNicknameMentionIsAccepted(t *testing.T) {
	h := newHarness(t)
	h.send(h.user, "<@!"+h.session.botID+"> version")
	assert.Equal(t, "T-MHI bot version 1.2.3", h.session.lastReply())
}

func TestPrefixOverrideScenario(t *testing.T) {
	h := newHarness(t)

	h.send(h.user, "!!version")
	require.Empty(t, h.session.replies, "no override yet: !! is not a prefix")

	h.command(h.admin, "setCommandPrefix !!")
	require.Equal(t, "Command prefix is now `!!`", h.session.lastReply())
	assert.Equal(t, "!!", h.store.overrides[h.guild.ID][tmhi.SettingCommandPrefix])

	h.send(h.user, "!!version")
	assert.Equal(t, "T-MHI bot version 1.2.3", h.session.lastReply())

	// the mention keeps working next to the override
	n := len(h.session.replies)
	h.command(h.user, "version")
	assert.Len(t, h.session.replies, n+1)

	// and usage hints show the override
	h.send(h.user, "!!initiate")
	assert.Contains(t, h.session.lastReply(), "`!!initiate @member`")
}

func TestSetCommandPrefixNullResets(t *testing.T) {
	h := newHarness(t)

	h.command(h.admin, "setCommandPrefix !!")
	require.Equal(t, "Command prefix is now `!!`", h.session.lastReply())

	h.command(h.admin, "setCommandPrefix null")
	assert.Equal(t, "Command prefix reset. Mention me to use commands.", h.session.lastReply())
	assert.NotContains(t, h.store.overrides[h.guild.ID], tmhi.SettingCommandPrefix)

	n := len(h.session.replies)
	h.send(h.user, "null version")
	h.send(h.user, "!!version")
	assert.Len(t, h.session.replies, n, "neither the old prefix nor the literal null is live")
}

func TestSetCommandPrefixRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	h.command(h.user, "setPrefix ?")
	assert.Equal(t, "Sorry, to change the command prefix you need the ADMIN permission", h.session.lastReply())
	assert.Empty(t, h.store.overrides[h.guild.ID])
}

func TestUnknownCommandFallsBackToHelp(t *testing.T) {
	h := newHarness(t)
	h.command(h.user, "Frobnicate now")

	embeds := h.session.embeds[h.user.ID]
	require.Len(t, embeds, 1)
	assert.Equal(t, "Commands", embeds[0].Title)
	assert.Len(t, embeds[0].Fields, len(Builtins().Commands()))
	assert.Contains(t, h.session.lastReply(), "`frobnicate`")
}

func TestGuildAliases(t *testing.T) {
	h := newHarness(t)
	h.store.setOverride(h.guild.ID, tmhi.SettingCommandAliases, "v=version")
	h.command(h.user, "V")
	assert.Equal(t, "T-MHI bot version 1.2.3", h.session.lastReply())
}

func TestDeleteCommandMessage(t *testing.T) {
	h := newHarness(t)
	h.store.setOverride(h.guild.ID, tmhi.SettingDeleteCommandMessage, "on")

	id := h.command(h.user, "version")
	assert.Equal(t, []string{id}, h.session.deleted)

	// a handler that already deleted its trigger is not deleted twice
	h.session.deleted = nil
	id = h.command(h.admin, `poll "Lunch?"`)
	assert.Equal(t, []string{id}, h.session.deleted)
}

func TestDeleteCommandMessageDisabled(t *testing.T) {
	h := newHarness(t)
	h.store.setOverride(h.guild.ID, tmhi.SettingDeleteCommandMessage, "off")
	h.command(h.user, "version")
	assert.Empty(t, h.session.deleted)
}

func TestHandlerFailuresAreContained(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		&Command{Name: "help", Run: nop},
		&Command{Name: "fail", Run: func(context.Context, *Request) error { return errBoom }},
		&Command{Name: "explode", Run: func(context.Context, *Request) error { panic("kaboom") }},
		&Command{Name: "ok", Run: func(ctx context.Context, req *Request) error {
			req.Reply(ctx, "fine")
			return nil
		}},
	)
	h := newHarness(t, WithRegistry(r))

	h.command(h.user, "fail")
	assert.Equal(t, replyCommandFailed, h.session.lastReply())
	h.command(h.user, "explode")
	assert.Equal(t, replyCommandFailed, h.session.lastReply())
	h.command(h.user, "ok")
	assert.Equal(t, "fine", h.session.lastReply())
}

func TestUnstoredMemberIsToldToWait(t *testing.T) {
	h := newHarness(t)
	stranger := tmhi.GuildMember{ID: snowflakeID(), GuildID: h.guild.ID, DisplayName: gofakeit.Username()}
	h.command(stranger, "createPermission FOO")
	assert.Equal(t, replyMemberMissing, h.session.lastReply())
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	var (
		km     keyedMutex
		inside [2]int32
		bad    atomic.Bool
		wg     sync.WaitGroup
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			unlock := km.Lock(fmt.Sprint(k))
			if atomic.AddInt32(&inside[k], 1) != 1 {
				bad.Store(true)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside[k], -1)
			unlock()
		}(i % 2)
	}
	wg.Wait()
	assert.False(t, bad.Load(), "two holders of the same key overlapped")
	assert.Empty(t, km.locks)
}

func TestRestoreWidgets(t *testing.T) {
	h := newHarness(t)
	for _, ch := range []string{"1", "2"} {
		h.store.clocks[ch] = clockWidget(h.guild.ID, ch)
	}
	n, err := h.d.RestoreWidgets(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, h.clocks.running, 2)
}
