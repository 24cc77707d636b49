package fragment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock pins Now for deterministic expiry math.
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestCapture_Parse_FullBundle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	capture := NewCapture(fixedClock{now: now})

	got := capture.Parse("https://app.example.com/dashboard#access_token=AT&refresh_token=RT&expires_in=7200")

	require.NotNil(t, got)
	assert.Equal(t, "AT", got.AccessToken)
	assert.Equal(t, "RT", got.RefreshToken)
	assert.Equal(t, now.Unix()+7200, got.ExpiresAt)
	assert.False(t, got.Recovery)
}

func TestCapture_Parse_AbsoluteExpiryWins(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	capture := NewCapture(fixedClock{now: now})

	got := capture.Parse("https://app.example.com/#access_token=AT&refresh_token=RT&expires_at=1800000000&expires_in=60")

	require.NotNil(t, got)
	assert.Equal(t, int64(1_800_000_000), got.ExpiresAt)
}

func TestCapture_Parse_DefaultExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	capture := NewCapture(fixedClock{now: now})

	got := capture.Parse("https://app.example.com/#access_token=AT&refresh_token=RT")

	require.NotNil(t, got)
	assert.Equal(t, now.Unix()+DefaultTokenTTL, got.ExpiresAt)
}

func TestCapture_Parse_MalformedExpiryFallsThrough(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	capture := NewCapture(fixedClock{now: now})

	got := capture.Parse("https://app.example.com/#access_token=AT&refresh_token=RT&expires_at=never&expires_in=60")

	require.NotNil(t, got)
	assert.Equal(t, now.Unix()+60, got.ExpiresAt)
}

func TestCapture_Parse_Rejections(t *testing.T) {
	capture := NewCapture(nil)

	tests := []struct {
		name string
		url  string
	}{
		{name: "no fragment", url: "https://app.example.com/dashboard?tab=leads"},
		{name: "empty fragment", url: "https://app.example.com/#"},
		{name: "missing refresh token", url: "https://app.example.com/#access_token=AT"},
		{name: "missing access token", url: "https://app.example.com/#refresh_token=RT"},
		{name: "unrelated fragment", url: "https://app.example.com/docs#pricing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, capture.Parse(tt.url))
		})
	}
}

func TestCapture_Parse_RecoveryFlow(t *testing.T) {
	capture := NewCapture(nil)

	got := capture.Parse("https://app.example.com/#access_token=AT&refresh_token=RT&type=recovery")

	require.NotNil(t, got)
	assert.True(t, got.Recovery)
}

func TestCapture_Scrub(t *testing.T) {
	capture := NewCapture(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "token fragment removed",
			in:   "https://app.example.com/dashboard?tab=leads#access_token=AT&refresh_token=RT",
			want: "https://app.example.com/dashboard?tab=leads",
		},
		{
			name: "no fragment untouched",
			in:   "https://app.example.com/dashboard",
			want: "https://app.example.com/dashboard",
		},
		{
			name: "query preserved",
			in:   "https://app.example.com/?utm_source=x#access_token=AT",
			want: "https://app.example.com/?utm_source=x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, capture.Scrub(tt.in))
		})
	}
}
