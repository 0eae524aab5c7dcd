package server

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	signer, err := NewTokenSigner([]byte("0123456789abcdef"), time.Hour)
	require.NoError(t, err)

	u := &User{ID: uuid.New(), Email: "a@x.com"}
	raw, err := signer.Issue(u)
	require.NoError(t, err)

	claims, err := signer.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, u.ID.String(), claims.UserID)
}

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	signer, err := NewTokenSigner([]byte("0123456789abcdef"), time.Minute)
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return start }
	raw, err := signer.Issue(&User{ID: uuid.New(), Email: "a@x.com"})
	require.NoError(t, err)

	signer.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = signer.Verify(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	other, err := NewTokenSigner([]byte("fedcba9876543210"), time.Minute)
	require.NoError(t, err)
	other.now = func() time.Time { return start }
	_, err = other.Verify(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenSignerNeedsKey(t *testing.T) {
	_, err := NewTokenSigner([]byte("short"), 0)
	assert.Error(t, err)
}
