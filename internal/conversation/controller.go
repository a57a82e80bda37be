package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/guidepostlabs/guidepost/internal/advice"
	"github.com/guidepostlabs/guidepost/internal/logging"
)

// NoticeKind classifies the feedback banner an action produces.
type NoticeKind string

const (
	NoticeNone    NoticeKind = ""
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

// Notice is transient feedback for the next render. It is never stored
// with the session.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Validation warnings for empty submissions.
const (
	warnConversationFirst = "Please enter your conversation first."
	warnResponseFirst     = "Please provide your response first."
)

// Controller drives a Session through the three conversation steps. Each
// action mutates the session in place and issues at most one advice call.
type Controller struct {
	advisor advice.Advisor
	logger  *slog.Logger
}

// NewController creates a controller backed by the given advisor. A nil
// logger discards output.
func NewController(advisor advice.Advisor, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{advisor: advisor, logger: logger}
}

// Submit applies the user's input to the session's current step. The
// returned notice carries validation warnings and advice failures for the
// next render; a zero notice means the step advanced (or looped) cleanly.
func (c *Controller) Submit(ctx context.Context, s *Session, input string) Notice {
	switch s.Step {
	case StepInitial:
		return c.submitConversation(ctx, s, input)
	case StepAwaitingClarification:
		return c.submitClarification(ctx, s, input)
	default:
		// The results panel has no submit action.
		return Notice{}
	}
}

// Reset returns the session to a blank initial step. Backs both the
// "Start Over" and "Start New Analysis" actions.
func (c *Controller) Reset(s *Session) {
	s.Reset()
	c.logger.Info("session reset")
}

func (c *Controller) submitConversation(ctx context.Context, s *Session, input string) Notice {
	if strings.TrimSpace(input) == "" {
		return Notice{Kind: NoticeWarning, Message: warnConversationFirst}
	}
	s.Conversation = input
	return c.apply(ctx, s, s.Conversation)
}

func (c *Controller) submitClarification(ctx context.Context, s *Session, input string) Notice {
	if strings.TrimSpace(input) == "" {
		return Notice{Kind: NoticeWarning, Message: warnResponseFirst}
	}
	// Only the latest response is sent; rounds do not accumulate into a
	// running transcript.
	s.ClarifyResponse = input
	return c.apply(ctx, s, s.ClarifyResponse)
}

// apply runs one advice call and folds the outcome into the session.
func (c *Controller) apply(ctx context.Context, s *Session, text string) Notice {
	out := c.advisor.Advise(ctx, text)
	c.logger.Info("advice outcome", "step", string(s.Step), "outcome", out.Kind())

	switch o := out.(type) {
	case advice.Clarify:
		s.Step = StepAwaitingClarification
		s.ClarifyQuestion = o.Question
		s.ClarifyResponse = ""
		s.Results = nil
		return Notice{}
	case advice.Result:
		s.Step = StepShowingResults
		s.Results = &o
		s.ClarifyQuestion = ""
		s.ClarifyResponse = ""
		return Notice{}
	case advice.Error:
		// The session stays where it was; the user may resubmit.
		return Notice{Kind: NoticeError, Message: o.Message}
	default:
		return Notice{}
	}
}
