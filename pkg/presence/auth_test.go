package presence_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/presence"
)

const secret = "test-secret-at-least-32-bytes-long!!"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestJWTAuthenticator(t *testing.T) {
	t.Parallel()
	a, err := presence.NewJWTAuthenticator(secret)
	require.NoError(t, err)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		user    string
		wantErr error
	}{
		{"sub claim", sign(t, jwt.MapClaims{"sub": "u1", "exp": exp}, secret), "u1", nil},
		{"user_id claim", sign(t, jwt.MapClaims{"user_id": "u2", "exp": exp}, secret), "u2", nil},
		{"no subject", sign(t, jwt.MapClaims{"exp": exp}, secret), "", presence.ErrMissingSubject},
		{"wrong key", sign(t, jwt.MapClaims{"sub": "u1"}, "another-secret"), "", presence.ErrInvalidToken},
		{"expired", sign(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}, secret), "", presence.ErrInvalidToken},
		{"garbage", "not-a-token", "", presence.ErrInvalidToken},
		{"empty", "", "", presence.ErrMissingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := a.Authenticate(ctx, tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.user, user)
		})
	}
}

func TestJWTAuthenticator_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	a, err := presence.NewJWTAuthenticator(secret)
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u1"}).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, presence.ErrInvalidToken)
}

func TestNewJWTAuthenticator_RequiresSecret(t *testing.T) {
	t.Parallel()
	_, err := presence.NewJWTAuthenticator("")
	assert.ErrorIs(t, err, presence.ErrMissingSecret)
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest("GET", "/ws?token=query", nil)
	assert.Equal(t, "query", presence.TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", presence.TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, presence.TokenFromRequest(r))
}
