package reality

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// RFC 7748 section 6.1 key pairs, re-encoded as URL-safe base64 without padding.
const (
	alicePrivate = "dwdtCnMYpX08FsFyUbJmRd9ML4frwJkqsXf7pR25LCo"
	alicePublic  = "hSDwCYkwp1R0i33ctD73Wg2_Og0mOBr066SpjqqbTmo"
	bobPrivate   = "XasIfmJKikt54X-Lg4AO5m87sSkmGLb9HC-LJ_-I4Os"
	bobPublic    = "3p7bfXt9wbTTW2HC7OQ1Nz-DQ8hbeGdNrfx-FG-IK08"
)

func TestDerivePublicKeyRFC7748(t *testing.T) {
	tests := []struct {
		name    string
		private string
		public  string
	}{
		{name: "alice", private: alicePrivate, public: alicePublic},
		{name: "bob", private: bobPrivate, public: bobPublic},
		{name: "padded input", private: alicePrivate + "=", public: alicePublic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DerivePublicKey(tt.private)
			require.NoError(t, err)
			assert.Equal(t, tt.public, got)
			assert.NotContains(t, got, "=")
		})
	}
}

func TestDerivePublicKeyDeterministic(t *testing.T) {
	first, err := DerivePublicKey(bobPrivate)
	require.NoError(t, err)
	second, err := DerivePublicKey(bobPrivate)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDerivePublicKeyInvalidLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		key := base64.RawURLEncoding.EncodeToString(make([]byte, n))
		_, err := DerivePublicKey(key)
		require.Error(t, err, "length %d", n)
		assert.True(t, errors.Is(err, ErrInvalidKeyLength), "length %d: %v", n, err)

		var lenErr *KeyLengthError
		require.True(t, errors.As(err, &lenErr))
		assert.Equal(t, n, lenErr.Got)
	}
}

func TestDerivePublicKeyInvalidEncoding(t *testing.T) {
	for _, key := range []string{"not base64!", "A", "abc$def", strings.Repeat("+", 43)} {
		_, err := DerivePublicKey(key)
		assert.ErrorIs(t, err, ErrInvalidKeyEncoding, "key %q", key)
	}
}

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Len(t, kp.Private, 43)
	assert.Len(t, kp.Public, 43)

	public, err := DerivePublicKey(kp.Private)
	require.NoError(t, err)
	assert.Equal(t, kp.Public, public)
}

func TestPropertyDeriveAcceptsAnyScalar(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		scalar := rapid.SliceOfN(rapid.Byte(), KeySize, KeySize).Draw(t, "scalar")
		key := base64.RawURLEncoding.EncodeToString(scalar)

		a, err := DerivePublicKey(key)
		if err != nil {
			t.Fatalf("DerivePublicKey failed: %v", err)
		}
		b, err := DerivePublicKey(base64.URLEncoding.EncodeToString(scalar))
		if err != nil {
			t.Fatalf("DerivePublicKey padded failed: %v", err)
		}
		if a != b {
			t.Fatalf("padding changed result: %q vs %q", a, b)
		}
		raw, err := base64.RawURLEncoding.DecodeString(a)
		if err != nil || len(raw) != KeySize {
			t.Fatalf("public key %q is not a %d-byte raw url encoding", a, KeySize)
		}
	})
}
