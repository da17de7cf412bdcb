package whatsapp

import (
	"github.com/talkincode/autoaccept/internal/platform"
	"go.mau.fi/whatsmeow"
	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// Group change nodes that announce new membership requests. whatsmeow does
// not parse them and hands them over in GroupInfo.UnknownChanges.
var joinRequestTags = map[string]bool{
	"created_membership_requests": true,
	"membership_approval_request": true,
}

// translate maps a whatsmeow event onto platform events. Events the core
// does not care about map to nil.
func translate(evt interface{}) []platform.Event {
	switch e := evt.(type) {
	case *events.Connected:
		return one(platform.ConnectionUpdate{State: platform.StateOpen})
	case *events.Disconnected:
		return one(platform.ConnectionUpdate{State: platform.StateClosed, Reason: "connection lost"})
	case *events.LoggedOut:
		return one(platform.ConnectionUpdate{
			State:     platform.StateClosed,
			CloseCode: platform.CloseCodeLoggedOut,
			Reason:    e.Reason.String(),
		})
	case *events.TemporaryBan:
		return one(platform.ConnectionUpdate{
			State:     platform.StateClosed,
			CloseCode: platform.CloseCodeForbidden,
			Reason:    e.String(),
		})
	case *events.ConnectFailure:
		reason := e.Message
		if reason == "" {
			reason = e.Reason.String()
		}
		return one(platform.ConnectionUpdate{
			State:     platform.StateClosed,
			CloseCode: int(e.Reason),
			Reason:    reason,
		})
	case *events.StreamReplaced:
		return one(platform.ConnectionUpdate{
			State:     platform.StateClosed,
			CloseCode: platform.CloseCodeReplaced,
			Reason:    "stream replaced",
		})
	case *events.PairSuccess:
		return one(platform.CredentialsChanged{})
	case *events.GroupInfo:
		return membershipUpdates(e)
	}
	return nil
}

// QR channel item kinds.
const (
	qrEventCode    = "code"
	qrEventSuccess = "success"
	qrEventTimeout = "timeout"
)

// qrUpdate maps a QR channel item. Codes are rotated by whatsmeow and each
// one becomes a challenge; every other item except success ends the login.
func qrUpdate(item whatsmeow.QRChannelItem) (platform.ConnectionUpdate, bool) {
	switch item.Event {
	case qrEventCode:
		return platform.ConnectionUpdate{State: platform.StateQR, QR: item.Code}, true
	case qrEventSuccess:
		return platform.ConnectionUpdate{}, false
	case qrEventTimeout:
		return platform.ConnectionUpdate{State: platform.StateLoginExpired, Reason: "login timed out"}, true
	}
	reason := item.Event
	if item.Error != nil {
		reason = item.Error.Error()
	}
	return platform.ConnectionUpdate{State: platform.StateLoginExpired, Reason: reason}, true
}

func one(evt platform.Event) []platform.Event {
	return []platform.Event{evt}
}

func membershipUpdates(e *events.GroupInfo) []platform.Event {
	group := e.JID.String()
	var out []platform.Event
	add := func(action platform.MembershipAction, jids []types.JID) {
		if len(jids) == 0 {
			return
		}
		out = append(out, platform.MembershipUpdate{GroupID: group, Participants: jidStrings(jids), Action: action})
	}
	if requesters, phones := joinRequests(e.UnknownChanges); len(requesters) > 0 {
		update := platform.MembershipUpdate{GroupID: group, Participants: jidStrings(requesters), Action: platform.ActionRequest}
		if len(phones) > 0 {
			update.PhoneNumbers = phones
		}
		out = append(out, update)
	}
	add(platform.ActionAdd, e.Join)
	add(platform.ActionRemove, e.Leave)
	add(platform.ActionPromote, e.Promote)
	add(platform.ActionDemote, e.Demote)
	return out
}

// joinRequests collects the requesting users from membership request nodes.
// The user is carried either on the node itself or on its children. The
// requester id is what approval needs; when it is a linked id the phone
// number sent next to it is returned in phones, keyed by that id.
func joinRequests(nodes []*waBinary.Node) (out []types.JID, phones map[string]string) {
	phones = make(map[string]string)
	collect := func(node *waBinary.Node) bool {
		jid, phone, ok := nodeJID(node)
		if !ok {
			return false
		}
		out = append(out, jid)
		if !phone.IsEmpty() && phone != jid {
			phones[jid.String()] = phone.String()
		}
		return true
	}
	for _, node := range nodes {
		if node == nil || !joinRequestTags[node.Tag] {
			continue
		}
		if collect(node) {
			continue
		}
		for _, child := range node.GetChildren() {
			collect(&child)
		}
	}
	return out, phones
}

// nodeJID returns the requester id of node, falling back to its phone
// number when no id is present.
func nodeJID(node *waBinary.Node) (jid, phone types.JID, ok bool) {
	jid = attrJID(node, "jid")
	phone = attrJID(node, "phone_number")
	if jid.IsEmpty() {
		jid = phone
	}
	return jid, phone, !jid.IsEmpty()
}

func attrJID(node *waBinary.Node, key string) types.JID {
	switch v := node.Attrs[key].(type) {
	case types.JID:
		return v
	case string:
		if jid, err := types.ParseJID(v); err == nil {
			return jid
		}
	}
	return types.JID{}
}

func jidStrings(jids []types.JID) []string {
	out := make([]string, len(jids))
	for i, jid := range jids {
		out[i] = jid.String()
	}
	return out
}
