package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrWeakSecret means the configured secret decodes to fewer than 32
	// bytes and is not the 64-hex-char form.
	ErrWeakSecret = errors.New("encryption secret must be at least 32 bytes when decoded")
	// ErrInvalidCiphertextFormat means the payload is not three
	// dot-separated base64 segments.
	ErrInvalidCiphertextFormat = errors.New("invalid encrypted payload format")
	// ErrAuthenticationFailed means the authentication tag did not verify.
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

var hexSecretPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// Vault encrypts and decrypts OAuth secrets with AES-256-GCM.
type Vault struct {
	key []byte
}

// New derives a 256-bit key from the configured secret. The secret may
// be 64 hex chars, base64, or raw UTF-8 of at least 32 bytes.
func New(secret string) (*Vault, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return &Vault{key: key}, nil
}

// DeriveKey decodes the secret and digests it down to exactly 32 bytes.
func DeriveKey(secret string) ([]byte, error) {
	normalized := strings.TrimSpace(secret)

	var key []byte
	if hexSecretPattern.MatchString(normalized) && len(normalized) == 64 {
		decoded, err := hex.DecodeString(normalized)
		if err != nil {
			return nil, fmt.Errorf("failed to decode hex secret: %w", err)
		}
		key = decoded
	} else {
		var bytes []byte
		if strings.Contains(normalized, "=") {
			decoded, err := base64.StdEncoding.DecodeString(normalized)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 secret: %w", err)
			}
			bytes = decoded
		} else {
			bytes = []byte(normalized)
		}

		switch {
		case len(bytes) == keySize:
			key = bytes
		case len(bytes) > keySize:
			digest := sha256.Sum256(bytes)
			key = digest[:]
		default:
			return nil, ErrWeakSecret
		}
	}

	if len(key) != keySize {
		digest := sha256.Sum256(key)
		key = digest[:]
	}
	return key, nil
}

// Encrypt seals the plaintext with a fresh random nonce. The output is
// nonce, ciphertext and tag as base64 segments joined by dots.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(tag),
	}, "."), nil
}

// Decrypt opens a payload produced by Encrypt.
func (v *Vault) Decrypt(payload string) (string, error) {
	segments := strings.Split(payload, ".")
	if len(segments) < 3 || segments[0] == "" || segments[1] == "" || segments[2] == "" {
		return "", ErrInvalidCiphertextFormat
	}

	nonce, err := base64.StdEncoding.DecodeString(segments[0])
	if err != nil {
		return "", ErrInvalidCiphertextFormat
	}
	ciphertext, err := base64.StdEncoding.DecodeString(segments[1])
	if err != nil {
		return "", ErrInvalidCiphertextFormat
	}
	tag, err := base64.StdEncoding.DecodeString(segments[2])
	if err != nil {
		return "", ErrInvalidCiphertextFormat
	}
	if len(nonce) != nonceSize || len(tag) != tagSize {
		return "", ErrInvalidCiphertextFormat
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}
	return string(plaintext), nil
}
