package whatsapp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/autoaccept/internal/platform"
	"go.mau.fi/whatsmeow"
	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

var (
	groupJID = types.NewJID("120363000000000001", types.GroupServer)
	alice    = types.NewJID("628123456789", types.DefaultUserServer)
	bob      = types.NewJID("447700900123", types.DefaultUserServer)
)

func TestTranslateConnectionEvents(t *testing.T) {
	cases := []struct {
		name string
		evt  interface{}
		want platform.ConnectionUpdate
	}{
		{"connected", &events.Connected{}, platform.ConnectionUpdate{State: platform.StateOpen}},
		{"disconnected", &events.Disconnected{}, platform.ConnectionUpdate{State: platform.StateClosed, Reason: "connection lost"}},
		{"replaced", &events.StreamReplaced{}, platform.ConnectionUpdate{State: platform.StateClosed, CloseCode: platform.CloseCodeReplaced, Reason: "stream replaced"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(tc.evt)
			require.Len(t, got, 1)
			assert.Equal(t, tc.want, got[0])
		})
	}
}

func TestTranslateTerminalEvents(t *testing.T) {
	got := translate(&events.LoggedOut{Reason: events.ConnectFailureLoggedOut})
	require.Len(t, got, 1)
	update := got[0].(platform.ConnectionUpdate)
	assert.Equal(t, platform.CloseCodeLoggedOut, update.CloseCode)
	assert.False(t, update.Retryable())

	got = translate(&events.TemporaryBan{})
	require.Len(t, got, 1)
	assert.Equal(t, platform.CloseCodeForbidden, got[0].(platform.ConnectionUpdate).CloseCode)

	got = translate(&events.ConnectFailure{Reason: events.ConnectFailureLoggedOut, Message: "device removed"})
	require.Len(t, got, 1)
	update = got[0].(platform.ConnectionUpdate)
	assert.Equal(t, 401, update.CloseCode)
	assert.Equal(t, "device removed", update.Reason)
}

func TestTranslateIgnoresUnrelatedEvents(t *testing.T) {
	assert.Nil(t, translate(&events.QR{Codes: []string{"handled by the qr channel"}}))
	assert.Nil(t, translate(&events.Message{}))
	assert.Nil(t, translate("noise"))
}

func TestTranslateGroupInfo(t *testing.T) {
	evt := &events.GroupInfo{
		JID:  groupJID,
		Join: []types.JID{bob},
		UnknownChanges: []*waBinary.Node{
			{Tag: "created_membership_requests", Attrs: waBinary.Attrs{"jid": alice}},
			{Tag: "membership_approval_request", Content: []waBinary.Node{
				{Tag: "requested_user", Attrs: waBinary.Attrs{"jid": bob.String()}},
			}},
			{Tag: "something_else", Attrs: waBinary.Attrs{"jid": alice}},
		},
	}

	got := translate(evt)

	require.Len(t, got, 2)
	assert.Equal(t, platform.MembershipUpdate{
		GroupID:      "120363000000000001@g.us",
		Participants: []string{"628123456789@s.whatsapp.net", "447700900123@s.whatsapp.net"},
		Action:       platform.ActionRequest,
	}, got[0])
	assert.Equal(t, platform.ActionAdd, got[1].(platform.MembershipUpdate).Action)
}

func TestTranslateJoinRequestKeepsLinkedIDAndPhone(t *testing.T) {
	lid := types.NewJID("100000000000002", types.HiddenUserServer)
	evt := &events.GroupInfo{
		JID: groupJID,
		UnknownChanges: []*waBinary.Node{
			{Tag: "created_membership_requests", Attrs: waBinary.Attrs{"jid": lid, "phone_number": alice}},
			{Tag: "created_membership_requests", Attrs: waBinary.Attrs{"phone_number": bob.String()}},
		},
	}

	got := translate(evt)

	require.Len(t, got, 1)
	update := got[0].(platform.MembershipUpdate)
	assert.Equal(t, []string{lid.String(), "447700900123@s.whatsapp.net"}, update.Participants)
	assert.Equal(t, map[string]string{lid.String(): "628123456789@s.whatsapp.net"}, update.PhoneNumbers)
	assert.Equal(t, "628123456789", update.Number(lid.String()))
	assert.Equal(t, "447700900123", update.Number(update.Participants[1]))
}

func TestGroupMetadataRanks(t *testing.T) {
	info := &types.GroupInfo{
		JID:       groupJID,
		GroupName: types.GroupName{Name: "Weekend Riders"},
		Participants: []types.GroupParticipant{
			{JID: alice, IsAdmin: true},
			{JID: bob, IsAdmin: true, IsSuperAdmin: true},
			{JID: types.NewJID("100000000000001", types.HiddenUserServer), PhoneNumber: types.NewJID("6281999", types.DefaultUserServer)},
		},
	}

	meta := groupMetadata(info)

	assert.Equal(t, "Weekend Riders", meta.Subject)
	require.Len(t, meta.Participants, 3)
	assert.Equal(t, platform.RankAdmin, meta.Participants[0].Rank)
	assert.Equal(t, platform.RankSuperAdmin, meta.Participants[1].Rank)
	assert.Equal(t, platform.RankMember, meta.Participants[2].Rank)
	assert.Equal(t, "6281999@s.whatsapp.net", meta.Participants[2].ID)
}

func TestConnectionFanOut(t *testing.T) {
	conn := &Connection{handlers: make(map[int]platform.EventHandler)}
	var got []string
	unsubscribeFirst := conn.Subscribe(func(evt platform.Event) {
		got = append(got, "first:"+string(evt.(platform.ConnectionUpdate).State))
	})
	var unsubscribeSecond func()
	unsubscribeSecond = conn.Subscribe(func(evt platform.Event) {
		got = append(got, "second:"+string(evt.(platform.ConnectionUpdate).State))
		unsubscribeSecond()
	})

	conn.handle(&events.Connected{})
	conn.handle(&events.Disconnected{})
	unsubscribeFirst()
	conn.handle(&events.Connected{})

	assert.Equal(t, []string{"first:open", "second:open", "first:closed"}, got)
}

func TestCredentialStoreDirectories(t *testing.T) {
	root := t.TempDir()
	store := NewCredentialStore(root, "")

	assert.Equal(t, filepath.Join(root, "wa_42"), store.Dir(42))
	assert.False(t, store.Exists(42))

	require.NoError(t, store.Ensure(42))
	assert.True(t, store.Exists(42))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(42), "session.db"), []byte("x"), 0o600))

	require.NoError(t, store.Delete(42))
	assert.False(t, store.Exists(42))
	assert.NoError(t, store.Delete(42))
}

func TestQRUpdate(t *testing.T) {
	update, ok := qrUpdate(whatsmeow.QRChannelItem{Event: "code", Code: "2@abc", Timeout: 20 * time.Second})
	require.True(t, ok)
	assert.Equal(t, platform.ConnectionUpdate{State: platform.StateQR, QR: "2@abc"}, update)

	_, ok = qrUpdate(whatsmeow.QRChannelItem{Event: "success"})
	assert.False(t, ok)

	update, ok = qrUpdate(whatsmeow.QRChannelItem{Event: "timeout"})
	require.True(t, ok)
	assert.Equal(t, platform.StateLoginExpired, update.State)

	update, ok = qrUpdate(whatsmeow.QRChannelItem{Event: "error", Error: errors.New("pair rejected")})
	require.True(t, ok)
	assert.Equal(t, platform.StateLoginExpired, update.State)
	assert.Equal(t, "pair rejected", update.Reason)

	update, ok = qrUpdate(whatsmeow.QRChannelItem{Event: "err-client-outdated"})
	require.True(t, ok)
	assert.Equal(t, "err-client-outdated", update.Reason)
}

func TestWatchQRPublishesEveryRotatedCode(t *testing.T) {
	c := &Connection{handlers: make(map[int]platform.EventHandler)}
	var got []platform.ConnectionUpdate
	c.Subscribe(func(evt platform.Event) {
		got = append(got, evt.(platform.ConnectionUpdate))
	})

	items := make(chan whatsmeow.QRChannelItem, 4)
	items <- whatsmeow.QRChannelItem{Event: "code", Code: "one"}
	items <- whatsmeow.QRChannelItem{Event: "code", Code: "two"}
	items <- whatsmeow.QRChannelItem{Event: "code", Code: "three"}
	items <- whatsmeow.QRChannelItem{Event: "timeout"}
	close(items)
	c.watchQR(items)

	require.Len(t, got, 4)
	assert.Equal(t, "two", got[1].QR)
	assert.Equal(t, "three", got[2].QR)
	assert.Equal(t, platform.StateLoginExpired, got[3].State)
}
