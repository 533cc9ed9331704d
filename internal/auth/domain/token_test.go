package domain_test

import (
	"testing"
	"time"

	"github.com/wardenauth/warden/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestNewRefreshToken(t *testing.T) {
	t.Parallel()

	now := time.Now()

	rt, err := domain.NewRefreshToken("id-1", "user-1", "opaque", now.Add(time.Hour), now)
	require.NoError(t, err)
	require.Equal(t, "user-1", rt.UserID)
	require.Equal(t, now, rt.CreatedAt)
	require.False(t, rt.Expired(now))
	require.True(t, rt.Expired(now.Add(2*time.Hour)))
}

func TestNewRefreshTokenRejectsPastExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now()

	_, err := domain.NewRefreshToken("id-1", "user-1", "opaque", now.Add(-time.Second), now)
	require.ErrorIs(t, err, domain.ErrPastExpiry)

	// Equal to now is not strictly in the future either.
	_, err = domain.NewRefreshToken("id-1", "user-1", "opaque", now, now)
	require.ErrorIs(t, err, domain.ErrPastExpiry)
}
