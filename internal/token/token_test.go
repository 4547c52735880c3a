package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	claim := Claim{JobID: 42, UserID: 7, CurrentID: 1001}
	tokenStr, err := codec.Encode(claim)
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	decoded, err := codec.Decode(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, claim, decoded)
}

func TestCodec_WrongSecret(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	other := NewCodec("different-secret", time.Hour)

	tokenStr, err := codec.Encode(Claim{JobID: 1, UserID: 2, CurrentID: 3})
	require.NoError(t, err)

	_, err = other.Decode(tokenStr)
	assert.Error(t, err)
}

func TestCodec_TamperedToken(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	tokenStr, err := codec.Encode(Claim{JobID: 1, UserID: 2, CurrentID: 3})
	require.NoError(t, err)

	// Flip a character in the payload segment.
	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	parts[1] = string(payload)

	_, err = codec.Decode(strings.Join(parts, "."))
	assert.Error(t, err)
}

func TestCodec_ExpiredToken(t *testing.T) {
	issuedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	codec := NewCodec("test-secret", time.Minute)
	codec.now = func() time.Time { return issuedAt }

	tokenStr, err := codec.Encode(Claim{JobID: 1, UserID: 2, CurrentID: 3})
	require.NoError(t, err)

	// Still valid just before expiry.
	codec.now = func() time.Time { return issuedAt.Add(30 * time.Second) }
	_, err = codec.Decode(tokenStr)
	assert.NoError(t, err)

	// Rejected once the ttl has passed.
	codec.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = codec.Decode(tokenStr)
	assert.Error(t, err)
}

func TestCodec_GarbageInput(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		_, err := codec.Decode(input)
		assert.Error(t, err, "input %q", input)
	}
}
