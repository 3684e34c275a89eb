package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_IssueAndValidate(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.Issue("account-1", "device-1")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "account-1", claims.AccountID())
	assert.Equal(t, "device-1", claims.DeviceID)
	assert.Equal(t, "statesync", claims.Issuer)
}

func TestService_Validate_Rejects(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	expired := NewService("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Issue("account-1", "")
	require.NoError(t, err)

	foreignToken, err := NewService("other-secret", time.Hour).Issue("account-1", "")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "account-1",
		Issuer:  issuer,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "account-1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "../etc",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not.a.token"},
		{name: "expired", token: expiredToken},
		{name: "wrong secret", token: foreignToken},
		{name: "alg none", token: noneToken},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "no subject", token: noSubject},
		{name: "malformed subject", token: badSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestService_Issue_RequiresAccount(t *testing.T) {
	_, err := NewService("s", time.Hour).Issue("", "device-1")
	assert.Error(t, err)
}

func TestAccountIDContext(t *testing.T) {
	_, ok := AccountID(context.Background())
	assert.False(t, ok)

	ctx := WithAccountID(context.Background(), "account-1")
	id, ok := AccountID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "account-1", id)
}
