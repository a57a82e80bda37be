package middleware

import "github.com/guidepostlabs/guidepost/internal/conversation"

// Middleware allows wrapping a Store to add behavior.
type Middleware func(conversation.Store) conversation.Store
