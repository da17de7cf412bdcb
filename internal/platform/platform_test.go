package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumberFromID(t *testing.T) {
	cases := map[string]string{
		"628123456789@s.whatsapp.net":    "628123456789",
		"628123456789:12@s.whatsapp.net": "628123456789",
		"628123456789:3":                 "628123456789",
		"628123456789":                   "628123456789",
		"":                               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NumberFromID(in), in)
	}
}

func TestConnectionUpdateRetryable(t *testing.T) {
	assert.False(t, ConnectionUpdate{State: StateClosed, CloseCode: CloseCodeLoggedOut}.Retryable())
	assert.False(t, ConnectionUpdate{State: StateClosed, CloseCode: CloseCodeForbidden}.Retryable())
	assert.True(t, ConnectionUpdate{State: StateClosed}.Retryable())
	assert.True(t, ConnectionUpdate{State: StateClosed, CloseCode: CloseCodeReplaced}.Retryable())
	assert.True(t, ConnectionUpdate{State: StateClosed, CloseCode: CloseCodeRestartNeeded}.Retryable())
}

func TestMembershipActionIsJoinRequest(t *testing.T) {
	assert.True(t, ActionRequest.IsJoinRequest())
	assert.True(t, ActionPending.IsJoinRequest())
	for _, a := range []MembershipAction{ActionAdd, ActionRemove, ActionPromote, ActionDemote} {
		assert.False(t, a.IsJoinRequest(), string(a))
	}
}
