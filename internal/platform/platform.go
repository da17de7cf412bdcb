// Package platform describes the messaging-platform capabilities the core
// consumes. The whatsmeow adapter implements it; tests use in-memory fakes.
package platform

import (
	"context"
	"strings"
)

// ConnectionState is the state reported by a ConnectionUpdate.
type ConnectionState string

const (
	StateQR     ConnectionState = "qr"
	StateOpen   ConnectionState = "open"
	StateClosed ConnectionState = "closed"
	// StateLoginExpired ends an unfinished login: the challenges ran out or
	// pairing failed. It is not a lost connection.
	StateLoginExpired ConnectionState = "login_expired"
)

// Close codes the platform reports when a session ends.
const (
	CloseCodeNone          = 0
	CloseCodeLoggedOut     = 401
	CloseCodeForbidden     = 403
	CloseCodeReplaced      = 440
	CloseCodeRestartNeeded = 515
)

// ConnectionUpdate is emitted on every connection-state transition.
type ConnectionUpdate struct {
	State     ConnectionState
	QR        string // set when State == StateQR
	CloseCode int    // set when State == StateClosed, 0 when unknown
	Reason    string
}

// Retryable reports whether a closed connection should be reopened.
// Only explicit logout and access revocation are terminal.
func (u ConnectionUpdate) Retryable() bool {
	return u.CloseCode != CloseCodeLoggedOut && u.CloseCode != CloseCodeForbidden
}

// MembershipAction is the kind of a group-membership change.
type MembershipAction string

const (
	ActionRequest MembershipAction = "request"
	ActionPending MembershipAction = "pending"
	ActionAdd     MembershipAction = "add"
	ActionRemove  MembershipAction = "remove"
	ActionPromote MembershipAction = "promote"
	ActionDemote  MembershipAction = "demote"
)

// IsJoinRequest reports whether the action is eligible for auto-accept.
func (a MembershipAction) IsJoinRequest() bool {
	return a == ActionRequest || a == ActionPending
}

// MembershipUpdate is a group-membership change seen by a connection.
type MembershipUpdate struct {
	GroupID      string
	Participants []string
	Action       MembershipAction
	// PhoneNumbers maps a participant identifier that carries no phone
	// number (a linked id) to the phone identifier sent alongside it.
	PhoneNumbers map[string]string
}

// Number returns the phone number of participant, preferring the phone
// identifier sent with the update over the participant identifier itself.
func (u MembershipUpdate) Number(participant string) string {
	if phone, ok := u.PhoneNumbers[participant]; ok && phone != "" {
		return NumberFromID(phone)
	}
	return NumberFromID(participant)
}

// ParticipantRank is a member's privilege level inside a group.
type ParticipantRank string

const (
	RankMember     ParticipantRank = ""
	RankAdmin      ParticipantRank = "admin"
	RankSuperAdmin ParticipantRank = "superadmin"
)

type GroupParticipant struct {
	ID   string
	Rank ParticipantRank
}

type GroupMetadata struct {
	ID           string
	Subject      string
	Participants []GroupParticipant
}

// Event is either a ConnectionUpdate, a MembershipUpdate or CredentialsChanged.
type Event interface{}

// CredentialsChanged is emitted when the authentication material was updated.
type CredentialsChanged struct{}

// EventHandler receives events from a Connection.
type EventHandler func(evt Event)

// Connection is one live session handle.
type Connection interface {
	// Connect starts the session; state changes arrive as ConnectionUpdate events.
	Connect() error
	Disconnect()
	// Subscribe registers h and returns a function that removes it.
	Subscribe(h EventHandler) (unsubscribe func())
	SelfID() string
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)
	ApproveParticipant(ctx context.Context, groupID, participantID string) error
	LeaveGroup(ctx context.Context, groupID string) error
	GroupMetadata(ctx context.Context, groupID string) (*GroupMetadata, error)
	Logout(ctx context.Context) error
}

// Credentials is the opaque, per-owner authentication material.
type Credentials interface {
	Path() string
	Close() error
}

// Dialer builds a Connection bound to an owner's credentials.
type Dialer interface {
	Open(ctx context.Context, ownerID int64, creds Credentials) (Connection, error)
}

// NumberFromID extracts the phone-number component of an identifier,
// dropping the domain ("@s.whatsapp.net") and device (":12") suffixes.
func NumberFromID(id string) string {
	user := id
	if i := strings.IndexByte(user, '@'); i >= 0 {
		user = user[:i]
	}
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	return user
}
