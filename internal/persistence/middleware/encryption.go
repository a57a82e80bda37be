package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/guidepostlabs/guidepost/internal/conversation"
)

// EncryptionConfig holds the AES-256 keys for sealing sessions at rest.
type EncryptionConfig struct {
	// ActiveKey seals every save and is tried first on load. 32 bytes.
	ActiveKey []byte

	// FallbackKeys are previous keys still accepted on load, newest
	// first. Rotation: promote a fresh key to ActiveKey, demote the old
	// one here, drop it once live sessions have been re-saved.
	FallbackKeys [][]byte
}

// keys returns every usable key, the active one first.
func (c EncryptionConfig) keys() [][]byte {
	return append([][]byte{c.ActiveKey}, c.FallbackKeys...)
}

type encryptionMiddleware struct {
	next   conversation.Store
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts sessions at
// rest using AES-GCM. Conversations carry whatever a person chose to paste
// about their life, so the backing store only ever sees an opaque envelope.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next conversation.Store) conversation.Store {
		return &encryptionMiddleware{next: next, config: config}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, session *conversation.Session) error {
	plain, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	sealed, err := seal(plain, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	// The envelope keeps the step visible for monitoring; the content is
	// hidden.
	envelope := &conversation.Session{
		Step:   session.Step,
		Sealed: base64.StdEncoding.EncodeToString(sealed),
	}

	return m.next.Save(ctx, sessionID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*conversation.Session, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Fail secure: once encryption is configured, a stored session without
	// an envelope is not trusted.
	if envelope.Sealed == "" {
		return nil, errors.New("session is missing its encrypted envelope")
	}

	sealed, err := base64.StdEncoding.DecodeString(envelope.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session envelope: %w", err)
	}

	plain, err := m.unsealWithRotation(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var session conversation.Session
	if err := json.Unmarshal(plain, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted session: %w", err)
	}

	return &session, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

// unsealWithRotation tries every configured key in order, so sessions
// sealed before a key rotation stay readable.
func (m *encryptionMiddleware) unsealWithRotation(sealed []byte) ([]byte, error) {
	for _, key := range m.config.keys() {
		if plain, err := unseal(sealed, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("no configured key decrypts this session")
}

// seal encrypts plain with AES-GCM under key and prepends the nonce.
func seal(plain []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// unseal reverses seal with the given key.
func unseal(sealed []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed payload shorter than its nonce")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
