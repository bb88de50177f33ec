// Package codec encrypts chat message bodies at rest.
//
// Ciphertext is AES-256-GCM, serialized as "enc:v1:" followed by the
// standard base64 encoding of nonce||sealed. The codec never fails a
// caller: anything it cannot encrypt or decrypt is passed through as-is
// so messages stay readable.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"

	"github.com/anonto42/edu-connect/backend/internal/models"
	"golang.org/x/crypto/argon2"
)

// CipherPrefix marks a stored value as v1 ciphertext.
const CipherPrefix = "enc:v1:"

// keySalt is fixed so every instance sharing a secret derives the same key.
var keySalt = []byte("edu-connect/chat-codec/v1")

type Codec struct {
	aead       cipher.AEAD
	logger     *slog.Logger
	onFallback func(op string)
}

type Option func(*Codec)

// WithFallbackHook registers a callback invoked whenever the codec degrades
// to plaintext. op is "encrypt" or "decrypt".
func WithFallbackHook(fn func(op string)) Option {
	return func(c *Codec) { c.onFallback = fn }
}

// DeriveKey stretches the configured secret into a 32 byte AES key.
func DeriveKey(secret string) []byte {
	return argon2.IDKey([]byte(secret), keySalt, 1, 64*1024, 4, 32)
}

// New builds a codec for secret. An empty secret yields a codec in
// plaintext mode: Encrypt is the identity and a warning is logged.
func New(secret string, logger *slog.Logger, opts ...Option) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Codec{logger: logger}
	for _, opt := range opts {
		opt(c)
	}

	if secret == "" {
		logger.Warn("chat encryption key not configured, messages will be stored as plaintext")
		return c
	}

	block, err := aes.NewCipher(DeriveKey(secret))
	if err != nil {
		logger.Error("failed to initialise message cipher, falling back to plaintext", "error", err)
		return c
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		logger.Error("failed to initialise message cipher, falling back to plaintext", "error", err)
		return c
	}
	c.aead = aead
	return c
}

// Enabled reports whether the codec holds a usable key.
func (c *Codec) Enabled() bool {
	return c.aead != nil
}

// LooksEncrypted is the marker heuristic used for untagged records.
func LooksEncrypted(value string) bool {
	return strings.HasPrefix(value, CipherPrefix) && len(value) > len(CipherPrefix)
}

// Encrypt returns the ciphertext for plaintext, or plaintext itself when
// encryption is disabled or the result does not decrypt back to the input.
func (c *Codec) Encrypt(plaintext string) string {
	body, _ := c.Encode(plaintext)
	return body
}

// Encode is Encrypt that also reports which encoding the returned body uses.
func (c *Codec) Encode(plaintext string) (body, encoding string) {
	if plaintext == "" || c.aead == nil {
		return plaintext, models.EncodingPlaintext
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		c.fallback("encrypt", "nonce generation failed", err)
		return plaintext, models.EncodingPlaintext
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	out := CipherPrefix + base64.StdEncoding.EncodeToString(sealed)

	// Self check before anything is persisted.
	check, err := c.open(out)
	if err != nil || check != plaintext {
		if err == nil {
			err = errors.New("round trip mismatch")
		}
		c.fallback("encrypt", "ciphertext failed verification", err)
		return plaintext, models.EncodingPlaintext
	}
	return out, models.EncodingV1Cipher
}

// Decrypt returns the plaintext for value. Values without the cipher marker
// are legacy plaintext and come back unchanged, as does anything that fails
// to decrypt or decrypts to an empty string.
func (c *Codec) Decrypt(value string) string {
	if !LooksEncrypted(value) {
		return value
	}
	plain, err := c.open(value)
	if err != nil {
		c.fallback("decrypt", "could not decrypt stored value", err)
		return value
	}
	if plain == "" {
		c.fallback("decrypt", "decrypted value is empty", nil)
		return value
	}
	return plain
}

// Decode decrypts a body according to its stored encoding tag. An empty tag
// means the record predates tagging and the marker heuristic applies.
func (c *Codec) Decode(body, encoding string) string {
	switch encoding {
	case models.EncodingPlaintext:
		return body
	case models.EncodingV1Cipher:
		plain, err := c.open(body)
		if err != nil || plain == "" {
			c.fallback("decrypt", "tagged ciphertext could not be decrypted", err)
			return body
		}
		return plain
	default:
		return c.Decrypt(body)
	}
}

func (c *Codec) open(value string) (string, error) {
	if c.aead == nil {
		return "", errors.New("no encryption key configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, CipherPrefix))
	if err != nil {
		return "", err
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("ciphertext too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (c *Codec) fallback(op, msg string, err error) {
	if err != nil {
		c.logger.Warn(msg, "op", op, "error", err)
	} else {
		c.logger.Warn(msg, "op", op)
	}
	if c.onFallback != nil {
		c.onFallback(op)
	}
}
