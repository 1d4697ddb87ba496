package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() Payload {
	return Payload{
		SessionID: "4b0c5c8e-3f7e-4f3c-9a51-9d7c2f1d8e11",
		UserID:    "0f8fad5b-d9cb-469f-a165-70867728950e",
		Firstname: "Alice",
		Lastname:  "Martin",
		Avatar:    "alice.png",
		Email:     "alice@example.test",
		RoleName:  "editor",
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	codec, err := NewAccessCodec("access-secret", 15*time.Minute)
	require.NoError(t, err)

	signed, err := codec.Sign(samplePayload())
	require.NoError(t, err)

	got, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, samplePayload(), got)
}

func TestAccessTokenRejectedByRefreshCodec(t *testing.T) {
	access, err := NewAccessCodec("access-secret", time.Minute)
	require.NoError(t, err)
	refresh, err := NewRefreshCodec("refresh-secret", time.Hour)
	require.NoError(t, err)

	accessToken, err := access.Sign(samplePayload())
	require.NoError(t, err)
	refreshToken, err := refresh.Sign(samplePayload())
	require.NoError(t, err)

	_, err = refresh.Verify(accessToken)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = access.Verify(refreshToken)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSameSecretDifferentAudienceRejected(t *testing.T) {
	access, err := NewAccessCodec("shared", time.Minute)
	require.NoError(t, err)
	refresh, err := NewRefreshCodec("shared", time.Minute)
	require.NoError(t, err)

	signed, err := access.Sign(samplePayload())
	require.NoError(t, err)
	_, err = refresh.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestExpiredTokenDistinguishedFromInvalid(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	issuer, err := NewAccessCodec("access-secret", time.Hour, WithClock(past))
	require.NoError(t, err)
	verifier, err := NewAccessCodec("access-secret", time.Hour)
	require.NoError(t, err)

	signed, err := issuer.Sign(samplePayload())
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestExpiredTokenWithWrongSecretIsInvalid(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	issuer, err := NewAccessCodec("access-secret", time.Hour, WithClock(past))
	require.NoError(t, err)
	verifier, err := NewAccessCodec("other-secret", time.Hour)
	require.NoError(t, err)

	signed, err := issuer.Sign(samplePayload())
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTamperedTokenIsInvalid(t *testing.T) {
	codec, err := NewAccessCodec("access-secret", time.Minute)
	require.NoError(t, err)
	signed, err := codec.Sign(samplePayload())
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	body := []byte(parts[1])
	mid := len(body) / 2
	if body[mid] == 'A' {
		body[mid] = 'B'
	} else {
		body[mid] = 'A'
	}
	tampered := parts[0] + "." + string(body) + "." + parts[2]

	_, err = codec.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMalformedInputs(t *testing.T) {
	codec, err := NewAccessCodec("access-secret", time.Minute)
	require.NoError(t, err)

	for _, raw := range []string{"", "null", "abc.def", "a.b.c"} {
		_, err := codec.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalid, raw)
	}
}

func TestSignRequiresIdentity(t *testing.T) {
	codec, err := NewAccessCodec("access-secret", time.Minute)
	require.NoError(t, err)

	_, err = codec.Sign(Payload{UserID: "u"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = codec.Sign(Payload{SessionID: "s"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewCodecValidation(t *testing.T) {
	_, err := NewAccessCodec("", time.Minute)
	assert.Error(t, err)
	_, err = NewAccessCodec("secret", 0)
	assert.Error(t, err)
}

func TestPackageLevelSignVerify(t *testing.T) {
	signed, err := Sign(samplePayload(), "secret-a", time.Minute)
	require.NoError(t, err)

	got, err := Verify(signed, "secret-a")
	require.NoError(t, err)
	assert.Equal(t, samplePayload().SessionID, got.SessionID)

	_, err = Verify(signed, "secret-b")
	assert.ErrorIs(t, err, ErrInvalid)
}
