package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hookgate/core"
)

// KeyRotationWindow bounds when a key version may encrypt new secrets.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	if !w.NotBefore.IsZero() && ts.Before(w.NotBefore.UTC()) {
		return false
	}
	if !w.NotAfter.IsZero() && ts.After(w.NotAfter.UTC()) {
		return false
	}
	return true
}

type RingKey struct {
	Provider *AppKeySecretProvider
	Window   KeyRotationWindow
}

// KeyRing seals with the newest key whose window is open and opens any
// envelope whose key id and version it holds. Secrets written under a
// retired key stay readable until they are re-saved.
type KeyRing struct {
	keys []RingKey
	now  func() time.Time
}

func NewKeyRing(keys ...RingKey) (*KeyRing, error) {
	ring := &KeyRing{now: time.Now}
	for _, key := range keys {
		if key.Provider == nil {
			continue
		}
		ring.keys = append(ring.keys, key)
	}
	if len(ring.keys) == 0 {
		return nil, fmt.Errorf("security: key ring requires at least one key")
	}
	return ring, nil
}

func (r *KeyRing) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	active, err := r.active()
	if err != nil {
		return nil, err
	}
	return active.Encrypt(ctx, plaintext)
}

func (r *KeyRing) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	for _, key := range r.keys {
		if strings.EqualFold(key.Provider.KeyID(), meta.KeyID) && key.Provider.Version() == meta.Version {
			return key.Provider.Decrypt(ctx, ciphertext)
		}
	}
	return nil, fmt.Errorf("security: no key for %q version %d", meta.KeyID, meta.Version)
}

func (r *KeyRing) active() (*AppKeySecretProvider, error) {
	if r == nil {
		return nil, fmt.Errorf("security: key ring is nil")
	}
	at := r.now()
	var selected *AppKeySecretProvider
	for _, key := range r.keys {
		if !key.Window.Allows(at) {
			continue
		}
		if selected == nil || key.Provider.Version() > selected.Version() {
			selected = key.Provider
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("security: no key is active at %s", at.UTC().Format(time.RFC3339))
	}
	return selected, nil
}

var _ core.SecretProvider = (*KeyRing)(nil)
