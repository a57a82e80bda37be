package middleware

import (
	"context"
	"regexp"

	"github.com/guidepostlabs/guidepost/internal/conversation"
)

type piiMiddleware struct {
	next     conversation.Store
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks text matching the given
// patterns before a session is persisted. Masking applies to the free-text
// fields a user types into, so email addresses or phone numbers never reach
// the backing store. Masking is lossy: a loaded session carries the masked
// text.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next conversation.Store) conversation.Store {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, session *conversation.Session) error {
	// Clone to avoid side effects on the in-flight session used by the
	// handlers.
	cloned := *session
	cloned.Conversation = m.mask(session.Conversation)
	cloned.ClarifyQuestion = m.mask(session.ClarifyQuestion)
	cloned.ClarifyResponse = m.mask(session.ClarifyResponse)

	return m.next.Save(ctx, sessionID, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*conversation.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) mask(text string) string {
	for _, p := range m.patterns {
		text = p.ReplaceAllString(text, "***")
	}
	return text
}
