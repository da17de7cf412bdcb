package domain

import (
	"time"

	"github.com/talkincode/autoaccept/internal/platform"
)

// SessionState is the per-owner connection lifecycle state.
type SessionState string

const (
	StateDisconnected        SessionState = "disconnected"
	StateConnecting          SessionState = "connecting"
	StateAwaitingChallenge   SessionState = "awaiting_challenge"
	StateAwaitingPairingCode SessionState = "awaiting_pairing_code"
	StateOpen                SessionState = "open"
)

// OwnerSession is the messaging-session state of one authorized owner.
type OwnerSession struct {
	OwnerID           int64               `json:"owner_id,string"`
	Conn              platform.Connection `json:"-"`
	State             SessionState        `json:"state"`
	Connected         bool                `json:"connected"`
	LastConnectedAt   time.Time           `json:"last_connected_at,omitempty"`
	PendingPairing    bool                `json:"pending_pairing"`
	PendingQR         bool                `json:"pending_qr"`
	LastQRAt          time.Time           `json:"last_qr_at,omitempty"`
	PhoneNumber       string              `json:"phone_number,omitempty"`
	Policy            AutoAcceptPolicy    `json:"policy"`
	HandlerAttached   bool                `json:"handler_attached"`
	ReconnectAttempts int                 `json:"reconnect_attempts"`
}

// NewOwnerSession returns the empty, disconnected session of an owner.
func NewOwnerSession(ownerID int64) *OwnerSession {
	return &OwnerSession{
		OwnerID: ownerID,
		State:   StateDisconnected,
		Policy:  DefaultPolicy(),
	}
}

// Reset restores the default state in place, keeping the owner identity.
func (s *OwnerSession) Reset() {
	*s = *NewOwnerSession(s.OwnerID)
}

// MarkOpen records a successful connection at now.
func (s *OwnerSession) MarkOpen(now time.Time) {
	s.State = StateOpen
	s.Connected = true
	s.LastConnectedAt = now
	s.PendingPairing = false
	s.PendingQR = false
	s.LastQRAt = time.Time{}
	s.ReconnectAttempts = 0
}

// MarkClosed records a lost connection; the handle is kept until replaced or torn down.
func (s *OwnerSession) MarkClosed() {
	s.State = StateDisconnected
	s.Connected = false
	s.HandlerAttached = false
}
