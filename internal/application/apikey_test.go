package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArgon2Params = Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

func TestHashAndVerifyAPIKey(t *testing.T) {
	encoded, err := HashAPIKey("s3cret", testArgon2Params)
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$v=19$m=1024,t=1,p=1$")

	assert.NoError(t, VerifyAPIKey(encoded, "s3cret"))
	assert.ErrorIs(t, VerifyAPIKey(encoded, "wrong"), ErrUnauthorized)

	other, err := HashAPIKey("s3cret", testArgon2Params)
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other, "salts must differ")

	_, err = HashAPIKey("", testArgon2Params)
	assert.Error(t, err)
}

func TestVerifyAPIKey_RejectsMalformedHashes(t *testing.T) {
	tests := map[string]struct {
		encoded string
		want    error
	}{
		"not argon":    {encoded: "$bcrypt$x$y$z$w", want: ErrInvalidAPIKeyHash},
		"too short":    {encoded: "$argon2id$v=19", want: ErrInvalidAPIKeyHash},
		"old version":  {encoded: "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA", want: ErrIncompatibleAPIKeyVersion},
		"bad params":   {encoded: "$argon2id$v=19$memory$c2FsdA$aGFzaA", want: ErrInvalidAPIKeyHash},
		"bad encoding": {encoded: "$argon2id$v=19$m=1024,t=1,p=1$!!$aGFzaA", want: ErrInvalidAPIKeyHash},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, VerifyAPIKey(tt.encoded, "key"), tt.want)
		})
	}
}

func TestAPIKeyVerifier(t *testing.T) {
	encoded, err := HashAPIKey("s3cret", testArgon2Params)
	require.NoError(t, err)

	verifier, err := NewAPIKeyVerifier(encoded)
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, verifier.Verify(ctx, ""), ErrUnauthorized)
	assert.ErrorIs(t, verifier.Verify(ctx, "nope"), ErrUnauthorized)
	require.NoError(t, verifier.Verify(ctx, "s3cret"))
	assert.Equal(t, 1, verifier.verified.Len())
	require.NoError(t, verifier.Verify(ctx, "s3cret"))
	assert.Equal(t, 1, verifier.verified.Len())

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, verifier.Verify(canceled, "s3cret"), context.Canceled)

	_, err = NewAPIKeyVerifier("plain-text")
	assert.ErrorIs(t, err, ErrInvalidAPIKeyHash)

	var nilVerifier *APIKeyVerifier
	assert.ErrorIs(t, nilVerifier.Verify(ctx, "s3cret"), ErrUnauthorized)
}
