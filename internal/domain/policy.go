package domain

import "github.com/pkg/errors"

// AcceptMode selects which join requests are approved.
type AcceptMode string

const (
	ModeSpecific AcceptMode = "specific"
	ModeAll      AcceptMode = "all"
)

// PostAction is what the bot does with a group right after an approval.
type PostAction string

const (
	PostStay PostAction = "stay"
	PostExit PostAction = "exit"
)

func ParsePostAction(s string) (PostAction, error) {
	switch PostAction(s) {
	case PostStay, PostExit:
		return PostAction(s), nil
	}
	return "", errors.Errorf("unknown post action %q", s)
}

// AutoAcceptPolicy is an owner's auto-accept configuration.
// TargetNumber is empty unless Mode is ModeSpecific.
type AutoAcceptPolicy struct {
	Enabled      bool       `json:"enabled"`
	Mode         AcceptMode `json:"mode"`
	TargetNumber string     `json:"target_number,omitempty"`
	PostAction   PostAction `json:"post_action"`
}

func DefaultPolicy() AutoAcceptPolicy {
	return AutoAcceptPolicy{
		Enabled:    false,
		Mode:       ModeSpecific,
		PostAction: PostStay,
	}
}

// SetModeAll switches to accept-all and clears the target.
func (p *AutoAcceptPolicy) SetModeAll() {
	p.Mode = ModeAll
	p.TargetNumber = ""
}

// SetModeSpecific restricts approvals to one normalized number.
func (p *AutoAcceptPolicy) SetModeSpecific(number string) {
	p.Mode = ModeSpecific
	p.TargetNumber = number
}

// Accepts reports whether a candidate number passes the policy mode.
func (p AutoAcceptPolicy) Accepts(number string) bool {
	switch p.Mode {
	case ModeAll:
		return true
	case ModeSpecific:
		return p.TargetNumber != "" && number == p.TargetNumber
	}
	return false
}

// ModeLabel is the human-readable form of the mode.
func (p AutoAcceptPolicy) ModeLabel() string {
	if p.Mode == ModeAll {
		return "Accept All"
	}
	return "Specific Number"
}
