package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = &HashParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := CreateHash("correct horse", testParams)
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := ComparePasswordAndHash("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePasswordAndHash("battery staple", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := CreateHash("correct horse", testParams)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts must differ")
}

func TestDecodeHashRejectsGarbage(t *testing.T) {
	for _, h := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=0$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5",
	} {
		_, _, _, err := DecodeHash(h)
		assert.Error(t, err, h)
	}
}

func TestDefaultParallelismIsPositive(t *testing.T) {
	assert.GreaterOrEqual(t, Params.Parallelism, uint8(1))
}

func TestParseTokenTTL(t *testing.T) {
	for _, s := range []string{"", "0", "never"} {
		d, err := parseTokenTTL(s)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := parseTokenTTL("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = parseTokenTTL("soon")
	assert.Error(t, err)
	_, err = parseTokenTTL("-1h")
	assert.Error(t, err)
}

func TestGuestIdentityRoundTrip(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "1h")
	require.NoError(t, Init())

	id, token, err := NewGuest()
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	got, err := Identity(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = Identity(token + "x")
	assert.Error(t, err)

	notUUID, err := CreateJWT("someone")
	require.NoError(t, err)
	_, err = Identity(notUUID)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestTokensFromOtherKeysAreRejected(t *testing.T) {
	require.NoError(t, Init())
	_, token, err := NewGuest()
	require.NoError(t, err)

	require.NoError(t, Init())
	_, err = Identity(token)
	assert.Error(t, err)
}
