// Package conversation holds the three-step session flow behind the
// advice form: the session record, the controller that applies user
// actions to it, and the store port the web layer persists it through.
package conversation

import (
	"github.com/guidepostlabs/guidepost/internal/advice"
)

// Step identifies which of the three panels the user is on.
type Step string

const (
	StepInitial               Step = "initial"
	StepAwaitingClarification Step = "awaiting_clarification"
	StepShowingResults        Step = "showing_results"
)

// Session is the per-user state of one advice conversation. Exactly one
// step is active at a time: Results is set only at StepShowingResults and
// ClarifyQuestion only at StepAwaitingClarification.
type Session struct {
	Step            Step           `json:"step"`
	Conversation    string         `json:"conversation"`
	ClarifyQuestion string         `json:"clarify_question"`
	ClarifyResponse string         `json:"clarify_response"`
	Results         *advice.Result `json:"results,omitempty"`

	// Sealed carries the encrypted payload in the stored copy when
	// encryption at rest is enabled. Every other field except Step is
	// cleared in that copy.
	Sealed string `json:"sealed,omitempty"`
}

// NewSession creates a blank session at the initial step.
func NewSession() *Session {
	return &Session{Step: StepInitial}
}

// Reset returns every field to its empty default and the step to initial.
func (s *Session) Reset() {
	*s = Session{Step: StepInitial}
}
