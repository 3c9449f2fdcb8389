// Package envelope seals a secret token with password-based authenticated
// encryption for embedding in the bundle manifest.
//
// The envelope carries everything a consumer needs to recover the secret
// given the passphrase: scrypt salt, GCM nonce, ciphertext, and tag. There
// is deliberately no decrypt path here; recovery belongs to the external
// packaging tool that consumes the bundle.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/scrypt"

	"bootforge/internal/services"
)

const (
	// FormatTag and VersionTag are the literal leading fields of the wire
	// form. Consumers match on them before attempting key derivation.
	FormatTag  = "aesgcm"
	VersionTag = "v1"

	saltSize  = 16
	nonceSize = 12
	keySize   = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Envelope is an immutable sealed secret. All fields are raw bytes; String
// renders the colon-delimited wire form.
type Envelope struct {
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

// Encrypt seals plaintext under passphrase with a fresh salt and nonce.
func Encrypt(plaintext, passphrase string) (*Envelope, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, services.Wrap(services.ErrCrypto, "envelope", "encrypt", "generate salt", err)
	}

	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, services.Wrap(services.ErrCrypto, "envelope", "encrypt", "derive key", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, services.Wrap(services.ErrCryptoUnavailable, "envelope", "encrypt", "init cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, services.Wrap(services.ErrCryptoUnavailable, "envelope", "encrypt", "init gcm", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, services.Wrap(services.ErrCrypto, "envelope", "encrypt", "generate nonce", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - aead.Overhead()

	return &Envelope{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: sealed[:tagStart],
		Tag:        sealed[tagStart:],
	}, nil
}

// String renders the stable wire form:
// aesgcm:v1:<salt>:<nonce>:<ciphertext>:<tag>, binary fields encoded as
// unpadded URL-safe base64.
func (e *Envelope) String() string {
	enc := base64.RawURLEncoding
	return strings.Join([]string{
		FormatTag,
		VersionTag,
		enc.EncodeToString(e.Salt),
		enc.EncodeToString(e.Nonce),
		enc.EncodeToString(e.Ciphertext),
		enc.EncodeToString(e.Tag),
	}, ":")
}
