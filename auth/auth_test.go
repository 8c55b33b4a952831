package auth

import (
	"testing"
	"time"

	"canteen-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	user := &models.User{ID: 7, Phone: "9000000000", Role: models.RoleAdmin, ProfileCompleted: true}

	token, err := m.Generate(user)
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "9000000000", claims.Phone)
	assert.True(t, claims.ProfileCompleted)
	assert.True(t, claims.Principal().IsAdmin())
}

func TestTokenRejectsTamperingAndExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewTokenManager("test-secret", time.Hour).WithClock(func() time.Time { return now })
	token, err := m.Generate(&models.User{ID: 1, Role: models.RoleStudent})
	require.NoError(t, err)

	other := NewTokenManager("other-secret", time.Hour).WithClock(func() time.Time { return now })
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	now = now.Add(2 * time.Hour)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestPrincipalOwnership(t *testing.T) {
	var nobody *Principal
	assert.False(t, nobody.IsAdmin())
	assert.False(t, nobody.Owns(1))

	p := &Principal{UserID: 3, Role: models.RoleStudent}
	assert.True(t, p.Owns(3))
	assert.False(t, p.Owns(4))
	assert.False(t, p.IsAdmin())
}
