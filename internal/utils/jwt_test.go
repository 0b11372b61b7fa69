package utils

import (
	"testing"
	"time"

	"tabletop/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	id := domain.Identity{UserID: 7, Username: "aria", Role: domain.RoleDM}
	token, err := GenerateJWT(id, "secret")
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, id, claims.Identity())
	assert.WithinDuration(t, time.Now().Add(SessionTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestParseJWTRejects(t *testing.T) {
	id := domain.Identity{UserID: 7, Username: "aria", Role: domain.RolePlayer}
	token, err := GenerateJWT(id, "secret")
	require.NoError(t, err)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err, "wrong secret")

	_, err = ParseJWT("not.a.token", "secret")
	assert.Error(t, err, "garbage")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   7,
		Username: "aria",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(signed, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(anonymous, "secret")
	assert.Error(t, err, "no identity")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 7, Username: "aria"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseJWT(none, "secret")
	assert.Error(t, err, "alg none")
}
