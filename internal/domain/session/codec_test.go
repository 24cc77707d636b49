package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	rec := Record{
		AccessToken:  "at-123",
		RefreshToken: "rt-456",
		ExpiresAt:    1735689600,
		User:         User{ID: "u1", Email: "a@b.com"},
	}

	decoded := DecodeRecord(EncodeRecord(rec))

	require.NotNil(t, decoded)
	assert.Equal(t, rec, *decoded)
}

func TestEncodeDecode_RoundTripEmptyEmail(t *testing.T) {
	rec := Record{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    100,
		User:         User{ID: "u1"},
	}

	decoded := DecodeRecord(EncodeRecord(rec))

	require.NotNil(t, decoded)
	assert.Equal(t, rec, *decoded)
}

func TestDecodeRecord_Rejection(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "nil input", raw: ""},
		{name: "not json", raw: "{not json"},
		{name: "json but not an object", raw: `"hello"`},
		{name: "missing user", raw: `{"access_token":"at","refresh_token":"rt","expires_at":1}`},
		{name: "missing user id", raw: `{"access_token":"at","refresh_token":"rt","expires_at":1,"user":{"email":"a@b.com"}}`},
		{name: "empty user id", raw: `{"access_token":"at","refresh_token":"rt","expires_at":1,"user":{"id":""}}`},
		{name: "numeric user id", raw: `{"access_token":"at","refresh_token":"rt","expires_at":1,"user":{"id":7}}`},
		{name: "missing access token", raw: `{"refresh_token":"rt","expires_at":1,"user":{"id":"u1"}}`},
		{name: "empty access token", raw: `{"access_token":"","refresh_token":"rt","expires_at":1,"user":{"id":"u1"}}`},
		{name: "missing refresh token", raw: `{"access_token":"at","expires_at":1,"user":{"id":"u1"}}`},
		{name: "string expires_at", raw: `{"access_token":"at","refresh_token":"rt","expires_at":"soon","user":{"id":"u1"}}`},
		{name: "numeric string expires_at", raw: `{"access_token":"at","refresh_token":"rt","expires_at":"1735689600","user":{"id":"u1"}}`},
		{name: "missing expires_at", raw: `{"access_token":"at","refresh_token":"rt","user":{"id":"u1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw []byte
			if tt.raw != "" {
				raw = []byte(tt.raw)
			}
			assert.Nil(t, DecodeRecord(raw))
		})
	}
}

func TestDecodeRecord_IgnoresUnknownFields(t *testing.T) {
	raw := []byte(`{"access_token":"at","refresh_token":"rt","expires_at":42,"token_type":"bearer","user":{"id":"u1","email":"a@b.com","role":"authenticated"}}`)

	decoded := DecodeRecord(raw)

	require.NotNil(t, decoded)
	assert.Equal(t, "at", decoded.AccessToken)
	assert.Equal(t, int64(42), decoded.ExpiresAt)
	assert.Equal(t, User{ID: "u1", Email: "a@b.com"}, decoded.User)
}

func TestDecodeRecord_NonStringEmailDefaultsEmpty(t *testing.T) {
	raw := []byte(`{"access_token":"at","refresh_token":"rt","expires_at":42,"user":{"id":"u1","email":123}}`)

	decoded := DecodeRecord(raw)

	require.NotNil(t, decoded)
	assert.Empty(t, decoded.User.Email)
}

func TestDecodeRecord_FloatExpiry(t *testing.T) {
	raw := []byte(`{"access_token":"at","refresh_token":"rt","expires_at":1735689600.0,"user":{"id":"u1"}}`)

	decoded := DecodeRecord(raw)

	require.NotNil(t, decoded)
	assert.Equal(t, int64(1735689600), decoded.ExpiresAt)
}

func TestRecord_ExpiresWithin(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	rec := Record{ExpiresAt: now.Add(29 * time.Second).Unix()}
	assert.True(t, rec.ExpiresWithin(30*time.Second, now))

	rec.ExpiresAt = now.Add(31 * time.Second).Unix()
	assert.False(t, rec.ExpiresWithin(30*time.Second, now))
}

func TestPendingCapture_Record(t *testing.T) {
	capture := PendingCapture{AccessToken: "at", RefreshToken: "rt", ExpiresAt: 99}

	rec := capture.Record()

	assert.Equal(t, "at", rec.AccessToken)
	assert.Equal(t, "rt", rec.RefreshToken)
	assert.Equal(t, int64(99), rec.ExpiresAt)
	assert.True(t, rec.User.IsPlaceholder())
}

func TestMode_UnmarshalText(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("DURABLE")))
	assert.Equal(t, ModeDurable, m)

	require.NoError(t, m.UnmarshalText([]byte("ephemeral")))
	assert.Equal(t, ModeEphemeral, m)

	assert.Error(t, m.UnmarshalText([]byte("localstorage")))
}
