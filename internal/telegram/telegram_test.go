package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/autoaccept/internal/domain"
	"github.com/talkincode/autoaccept/internal/notify/notifytest"
	"gopkg.in/telebot.v4"
)

func TestAuthorized(t *testing.T) {
	owners := map[int64]bool{42: true}
	isOwner := func(id int64) bool { return owners[id] }

	assert.True(t, authorized(isOwner, &telebot.User{ID: 42}))
	assert.False(t, authorized(isOwner, &telebot.User{ID: 7}))
	assert.False(t, authorized(isOwner, nil))
}

func TestInputStates(t *testing.T) {
	s := newInputStates()
	assert.Equal(t, inputNone, s.take(1))

	s.set(1, inputPhone)
	s.set(2, inputTarget)
	assert.Equal(t, inputPhone, s.take(1))
	assert.Equal(t, inputNone, s.take(1), "a prompt is answered once")
	assert.Equal(t, inputTarget, s.take(2))

	s.set(3, inputPhone)
	s.set(3, inputNone)
	assert.Equal(t, inputNone, s.take(3))
}

func TestMainMenu(t *testing.T) {
	kb := mainMenu(true)
	require.Len(t, kb, 4)
	assert.Equal(t, "🟢 WhatsApp Connected", kb[0][0].Label)
	assert.Equal(t, cbNoop, kb[0][0].Data)
	assert.Equal(t, "🔴 WhatsApp Disconnected", mainMenu(false)[0][0].Label)
}

func TestAutoAcceptMenu(t *testing.T) {
	p := domain.AutoAcceptPolicy{Enabled: true, Mode: domain.ModeSpecific, TargetNumber: "628123456789", PostAction: domain.PostExit}
	kb := autoAcceptMenu(p)
	require.Len(t, kb, 4)
	assert.Equal(t, "🤖 Auto Accept: ON ✅", kb[0][0].Label)
	assert.Equal(t, "📋 Mode: 🎯 628123456789", kb[1][0].Label)
	assert.Equal(t, "🚪 After Accept: 🚪 Exit", kb[2][0].Label)

	kb = autoAcceptMenu(domain.DefaultPolicy())
	assert.Equal(t, "🤖 Auto Accept: OFF ❌", kb[0][0].Label)
	assert.Equal(t, "📋 Mode: 🎯 Not Set", kb[1][0].Label)
	assert.Equal(t, "🚪 After Accept: 🏠 Stay", kb[2][0].Label)

	assert.Equal(t, "🌍 Accept All", modeText(domain.AutoAcceptPolicy{Mode: domain.ModeAll}))
}

func TestMarkup(t *testing.T) {
	m := markup(keyboard{row("a", cbLogin), {{Label: "b", Data: cbLogout}, {Label: "c", Data: cbNoop}}})
	require.Len(t, m.InlineKeyboard, 2)
	assert.Equal(t, telebot.InlineButton{Unique: cbLogin, Text: "a"}, m.InlineKeyboard[0][0])
	assert.Len(t, m.InlineKeyboard[1], 2)
	assert.Equal(t, cbNoop, m.InlineKeyboard[1][1].Unique)
}

func TestCallbacksCovered(t *testing.T) {
	seen := map[string]bool{}
	menus := []keyboard{
		mainMenu(false), loginMenu(), autoAcceptMenu(domain.DefaultPolicy()), modeMenu(),
		postActionMenu(), notConnectedMenu(), cancelMenu(cbMainMenu), backToSettings(),
	}
	for _, kb := range menus {
		for _, r := range kb {
			for _, b := range r {
				seen[b.Data] = true
			}
		}
	}
	handled := map[string]bool{}
	for _, cb := range callbacks() {
		handled[cb] = true
	}
	for data := range seen {
		assert.True(t, handled[data], "button %q has no handler", data)
	}
}

func TestStatusText(t *testing.T) {
	assert.Contains(t, statusText(domain.OwnerSession{}, false), "No WhatsApp session")

	sess := domain.OwnerSession{
		State:             domain.StateOpen,
		Connected:         true,
		LastConnectedAt:   time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC),
		ReconnectAttempts: 2,
		Policy:            domain.AutoAcceptPolicy{Enabled: true, Mode: domain.ModeAll},
	}
	text := statusText(sess, true)
	assert.Contains(t, text, string(domain.StateOpen))
	assert.Contains(t, text, "Connected since")
	assert.Contains(t, text, "*Reconnect attempts:* 2")
	assert.Contains(t, text, "*Auto Accept:* ON")
	assert.Contains(t, text, "🌍 Accept All")
}

func TestTexts(t *testing.T) {
	assert.Contains(t, invalidNumberText("too short"), "too short")
	assert.Contains(t, targetSetText("628123456789"), "628123456789")
	assert.Equal(t, "❌ *Error:* boom", errorText(errors.New("boom")))
	assert.Contains(t, settingsText(domain.AutoAcceptPolicy{Enabled: true}), "✅ ENABLED")
}

func TestDynamicTextsStayValidMarkdown(t *testing.T) {
	sess := domain.OwnerSession{State: domain.StateAwaitingPairingCode, Policy: domain.DefaultPolicy()}
	texts := []string{
		statusText(sess, true),
		errorText(errors.New("open sessions/wa_1: permission denied")),
		invalidNumberText("needs_digits"),
		targetSetText("628123456789"),
		settingsText(domain.AutoAcceptPolicy{Mode: domain.ModeSpecific, TargetNumber: "628123456789"}),
	}
	for _, text := range texts {
		assert.True(t, notifytest.MarkdownValid(text), text)
	}
	assert.Contains(t, statusText(sess, true), `awaiting\_pairing\_code`)
}

type fakeController struct {
	sessions map[int64]domain.OwnerSession
	creds    map[int64]bool
}

func (f *fakeController) Connect(context.Context, int64, bool) error { return nil }

func (f *fakeController) RequestPairingCode(context.Context, int64, string) (string, error) {
	return "", nil
}

func (f *fakeController) RequestQR(int64) error { return nil }

func (f *fakeController) Logout(context.Context, int64) error { return nil }

func (f *fakeController) Status(ownerID int64) (domain.OwnerSession, bool) {
	sess, ok := f.sessions[ownerID]
	return sess, ok
}

func (f *fakeController) HasCredentials(ownerID int64) bool { return f.creds[ownerID] }

func TestHasLogin(t *testing.T) {
	ctrl := &fakeController{
		sessions: map[int64]domain.OwnerSession{
			1: {State: domain.StateConnecting},
			2: {State: domain.StateDisconnected, ReconnectAttempts: 3},
		},
		creds: map[int64]bool{3: true},
	}
	b := &Bot{ctrl: ctrl}

	assert.True(t, b.hasLogin(1), "a handle that is still connecting")
	assert.True(t, b.hasLogin(2), "a session between reconnects has no handle")
	assert.True(t, b.hasLogin(3), "credentials left on disk")
	assert.False(t, b.hasLogin(4))
}
