package linking

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
)

func newTestCodec() (*StateCodec, *clock.Simulated) {
	clk := clock.NewSimulated(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewStateCodec([]byte(testSigningKey), 10*time.Minute, clk), clk
}

func TestStateCodec_RoundTrip(t *testing.T) {
	codec, clk := newTestCodec()
	in := LinkState{
		TenantID:      testTenantID,
		Provider:      domain.ProviderGoogle,
		SessionID:     "s-1",
		DefaultConfig: testDefaultConfig,
	}

	token, err := codec.Encode(in)
	require.NoError(t, err)

	out, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, in.TenantID, out.TenantID)
	assert.Equal(t, in.Provider, out.Provider)
	assert.Equal(t, in.SessionID, out.SessionID)
	assert.Equal(t, in.DefaultConfig, out.DefaultConfig)
	assert.True(t, out.ExpiresAt.Equal(clk.Now().Add(10*time.Minute)))
}

func TestStateCodec_Rejects(t *testing.T) {
	codec, clk := newTestCodec()
	valid, err := codec.Encode(LinkState{TenantID: testTenantID, Provider: domain.ProviderMeta, SessionID: "s-1"})
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := codec.Decode("")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := codec.Decode("not-a-token")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := codec.Decode(valid[:len(valid)-2] + "xx")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("other key", func(t *testing.T) {
		other := NewStateCodec([]byte("another-signing-key-another-signing"), time.Minute, clk)
		_, err := other.Decode(valid)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Minute)),
			},
			Provider:  domain.ProviderMeta,
			SessionID: "s-1",
		}).SignedString([]byte(testSigningKey))
		require.NoError(t, err)

		_, err = codec.Decode(foreign)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("expired", func(t *testing.T) {
		local, localClock := newTestCodec()
		token, err := local.Encode(LinkState{TenantID: testTenantID, Provider: domain.ProviderMeta, SessionID: "s-1"})
		require.NoError(t, err)

		localClock.Advance(10 * time.Minute)

		_, err = local.Decode(token)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Contains(t, err.Error(), "expired")
	})
}
