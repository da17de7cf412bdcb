package session

import (
	"github.com/talkincode/autoaccept/internal/domain"
)

// Policy operations invoked by the front-end. Each is a single store write.

func (s *Store) SetEnabled(ownerID int64, enabled bool) (domain.AutoAcceptPolicy, bool) {
	sess, ok := s.Update(ownerID, func(sess *domain.OwnerSession) {
		sess.Policy.Enabled = enabled
	})
	return sess.Policy, ok
}

func (s *Store) ToggleEnabled(ownerID int64) (domain.AutoAcceptPolicy, bool) {
	sess, ok := s.Update(ownerID, func(sess *domain.OwnerSession) {
		sess.Policy.Enabled = !sess.Policy.Enabled
	})
	return sess.Policy, ok
}

func (s *Store) SetModeAll(ownerID int64) (domain.AutoAcceptPolicy, bool) {
	sess, ok := s.Update(ownerID, func(sess *domain.OwnerSession) {
		sess.Policy.SetModeAll()
	})
	return sess.Policy, ok
}

// SetModeSpecific expects a number already normalized by the validator.
func (s *Store) SetModeSpecific(ownerID int64, number string) (domain.AutoAcceptPolicy, bool) {
	sess, ok := s.Update(ownerID, func(sess *domain.OwnerSession) {
		sess.Policy.SetModeSpecific(number)
	})
	return sess.Policy, ok
}

func (s *Store) SetPostAction(ownerID int64, action domain.PostAction) (domain.AutoAcceptPolicy, bool) {
	sess, ok := s.Update(ownerID, func(sess *domain.OwnerSession) {
		sess.Policy.PostAction = action
	})
	return sess.Policy, ok
}
