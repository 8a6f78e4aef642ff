package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siakad-core/siakad-core/internal/auth"
	"github.com/siakad-core/siakad-core/internal/shared"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCodec(clock *fakeClock) *auth.Codec {
	return auth.NewCodec(testSecret, "siakad-test", 15*time.Minute, 720*time.Hour, clock.Now)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(clock)

	user := &auth.User{ID: 42, TokenVersion: 3}
	token, err := codec.EncodeAccess(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := codec.DecodeAccess(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, int64(3), claims.TokenVersion)
}

func TestAccessTokenExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(clock)

	token, err := codec.EncodeAccess(&auth.User{ID: 1})
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)
	_, err = codec.DecodeAccess(token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestTamperedTokenRejected(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(clock)

	token, err := codec.EncodeAccess(&auth.User{ID: 1})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("x", len(parts[2]))
	_, err = codec.DecodeAccess(tampered)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(clock)

	access, err := codec.EncodeAccess(&auth.User{ID: 7})
	require.NoError(t, err)
	refresh, err := codec.EncodeRefresh("session-1", clock.now.Add(time.Hour))
	require.NoError(t, err)

	_, err = codec.DecodeAccess(refresh)
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = codec.DecodeRefresh(access)
	require.ErrorIs(t, err, shared.ErrInvalidRefreshToken)
}

func TestRefreshTokenCarriesSessionID(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(clock)

	token, err := codec.EncodeRefresh("abc-123", clock.now.Add(time.Hour))
	require.NoError(t, err)

	jti, err := codec.DecodeRefresh(token)
	require.NoError(t, err)
	require.Equal(t, "abc-123", jti)
}

func TestWrongSecretRejected(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(clock)
	other := auth.NewCodec(strings.Repeat("z", 32), "siakad-test", 15*time.Minute, time.Hour, clock.Now)

	token, err := codec.EncodeAccess(&auth.User{ID: 1})
	require.NoError(t, err)

	_, err = other.DecodeAccess(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, shared.ErrUnauthorized))
}
