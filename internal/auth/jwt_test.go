package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	operator, company := uuid.New(), uuid.New()

	token, err := GenerateToken(operator, company, "ops@example.com", "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, operator, claims.OperatorID)
	assert.Equal(t, company, claims.CompanyID)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestParseToken_Rejects(t *testing.T) {
	operator, company := uuid.New(), uuid.New()

	good, err := GenerateToken(operator, company, "a@b.co", "s3cret", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(good, "other-secret")
	assert.Error(t, err, "wrong secret")

	expired, err := GenerateToken(operator, company, "a@b.co", "s3cret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, "s3cret")
	assert.Error(t, err, "expired")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{CompanyID: company})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(none, "s3cret")
	assert.Error(t, err, "alg none")
}
