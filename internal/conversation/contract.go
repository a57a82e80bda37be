package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store
// implementation adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := NewSession()
		session.Step = StepAwaitingClarification
		session.Conversation = "I enjoy painting and sketching"
		session.ClarifyQuestion = "Do you prefer digital or traditional media?"

		err := store.Save(ctx, sessionID, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, StepAwaitingClarification, loaded.Step)
		assert.Equal(t, session.Conversation, loaded.Conversation)
		assert.Equal(t, session.ClarifyQuestion, loaded.ClarifyQuestion)
		assert.Nil(t, loaded.Results)
	})

	t.Run("Overwrite", func(t *testing.T) {
		first := NewSession()
		first.Conversation = "first"
		require.NoError(t, store.Save(ctx, sessionID, first))

		second := NewSession()
		second.Conversation = "second"
		require.NoError(t, store.Save(ctx, sessionID, second))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "second", loaded.Conversation)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("Isolation", func(t *testing.T) {
		session := NewSession()
		session.Conversation = "original"
		require.NoError(t, store.Save(ctx, sessionID, session))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Conversation = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "original", again.Conversation, "mutating a loaded session must not leak into the store")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, NewSession()))

		err := store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})
}
