package utils

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWT(t *testing.T) {
	tok, err := SignJWT("secret", "u1", "admin", "Rina", time.Hour)
	require.NoError(t, err)

	c, err := ParseJWT("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "admin", c.Role)
	assert.Equal(t, "Rina", c.Name)

	_, err = ParseJWT("other", tok)
	assert.Error(t, err)

	expired, err := SignJWT("secret", "u1", "admin", "Rina", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT("secret", expired)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	BcryptCost = bcrypt.MinCost
	h, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "hunter22"))
	assert.False(t, CheckPassword(h, "hunter23"))
}

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "u1", Role: "student", Name: "Budi"})
	assert.Equal(t, Identity{UserID: "u1", Role: "student", Name: "Budi"}, IdentityFrom(ctx))
	assert.Equal(t, Identity{}, IdentityFrom(context.Background()))
}

func TestQueryHelpers(t *testing.T) {
	q := url.Values{"limit": {"20"}, "bad": {"x"}, "anon": {"true"}, "from": {"2024-03-01"}}
	assert.Equal(t, 20, QueryInt(q, "limit", 10))
	assert.Equal(t, 10, QueryInt(q, "bad", 10))
	require.NotNil(t, QueryBool(q, "anon"))
	assert.True(t, *QueryBool(q, "anon"))
	assert.Nil(t, QueryBool(q, "missing"))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), QueryDate(q, "from"))
	assert.True(t, QueryDate(q, "bad").IsZero())
}
