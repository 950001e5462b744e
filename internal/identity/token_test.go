package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndValidate(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, issued, err := m.Issue("0xABCDEF0123456789abcdef0123456789abcdef01", []string{"admin"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", claims.Subject)
	assert.Equal(t, []string{"admin"}, claims.Groups)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	expired, _, err := NewTokenManager("test-secret", -time.Minute).Issue("0xabc", nil)
	require.NoError(t, err)

	foreign, _, err := NewTokenManager("other-secret", time.Hour).Issue("0xabc", nil)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0xabc",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "0xabc"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", foreign},
		{"none algorithm", unsigned},
		{"missing expiry", noExpiry},
		{"garbage", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
