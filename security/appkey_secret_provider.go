// Package security seals webhook shared secrets at rest.
package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-hookgate/core"
)

const defaultKeyID = "app-key"

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals secrets with AES-GCM under one application key.
// Key material that is not 16, 24 or 32 bytes long is hashed to 32 bytes.
// The key id and version are bound into the seal, so an envelope whose
// header was edited fails to open.
type AppKeySecretProvider struct {
	aead    cipher.AEAD
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(p *AppKeySecretProvider) {
		if id = strings.TrimSpace(id); id != "" {
			p.keyID = id
		}
	}
}

func WithVersion(version int) Option {
	return func(p *AppKeySecretProvider) {
		if version > 0 {
			p.version = version
		}
	}
}

func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	material := bytes.TrimSpace(keyMaterial)
	if len(material) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	block, err := aes.NewCipher(deriveKey(material))
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	p := &AppKeySecretProvider{aead: aead, keyID: defaultKeyID, version: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	sealed := p.aead.Seal(nil, nonce, plaintext, p.additionalData())
	return encodeEnvelope(envelope{
		KeyID:      p.keyID,
		Version:    p.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	if env.Algorithm != "" && env.Algorithm != envelopeAlgorithm {
		return nil, fmt.Errorf("security: unsupported envelope algorithm %q", env.Algorithm)
	}
	if env.KeyID != p.keyID || env.Version != p.version {
		return nil, fmt.Errorf(
			"security: envelope sealed with %s/v%d, provider holds %s/v%d",
			env.KeyID, env.Version, p.keyID, p.version,
		)
	}
	nonce, err := decodeBase64("nonce", env.Nonce)
	if err != nil {
		return nil, err
	}
	if len(nonce) != p.aead.NonceSize() {
		return nil, fmt.Errorf("security: nonce has %d bytes, want %d", len(nonce), p.aead.NonceSize())
	}
	sealed, err := decodeBase64("ciphertext payload", env.Ciphertext)
	if err != nil {
		return nil, err
	}
	plaintext, err := p.aead.Open(nil, nonce, sealed, p.additionalData())
	if err != nil {
		return nil, fmt.Errorf("security: open sealed secret: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.version
}

func (p *AppKeySecretProvider) additionalData() []byte {
	return []byte(envelopePrefix + p.keyID + "/" + strconv.Itoa(p.version))
}

func deriveKey(material []byte) []byte {
	switch len(material) {
	case 16, 24, 32:
		return bytes.Clone(material)
	}
	sum := sha256.Sum256(material)
	return sum[:]
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
