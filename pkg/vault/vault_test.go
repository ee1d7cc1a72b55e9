package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(testSecret)
	require.NoError(t, err)
	return v
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	payload, err := v.Encrypt("ya29.super-secret-access-token")
	require.NoError(t, err)

	assert.Len(t, strings.Split(payload, "."), 3)

	plaintext, err := v.Decrypt(payload)
	require.NoError(t, err)
	assert.Equal(t, "ya29.super-secret-access-token", plaintext)
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Encrypt("same input")
	require.NoError(t, err)
	second, err := v.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecrypt_InvalidFormat(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name    string
		payload string
	}{
		{"no dots", "abcdef"},
		{"two segments", "abc.def"},
		{"empty segment", "abc..def"},
		{"not base64", "!!!.@@@.###"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decrypt(tt.payload)
			assert.ErrorIs(t, err, ErrInvalidCiphertextFormat)
		})
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	v := newTestVault(t)

	payload, err := v.Encrypt("refresh-token-value")
	require.NoError(t, err)

	segments := strings.Split(payload, ".")
	// Flip one character of the ciphertext segment
	flipped := "A"
	if strings.HasPrefix(segments[1], "A") {
		flipped = "B"
	}
	segments[1] = flipped + segments[1][1:]
	_, err = v.Decrypt(strings.Join(segments, "."))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDecrypt_WrongKey(t *testing.T) {
	v := newTestVault(t)
	other, err := New("another-perfectly-long-secret-value-here")
	require.NoError(t, err)

	payload, err := v.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(payload)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDeriveKey(t *testing.T) {
	t.Run("hex secret decodes to raw bytes", func(t *testing.T) {
		key, err := DeriveKey(testSecret)
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("long utf8 secret is digested", func(t *testing.T) {
		key, err := DeriveKey(strings.Repeat("x", 48))
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("short secret is rejected", func(t *testing.T) {
		_, err := DeriveKey("too-short")
		assert.ErrorIs(t, err, ErrWeakSecret)
	})
}
