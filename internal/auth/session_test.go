package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	require.NoError(t, Init(0))

	id := uuid.New()
	token, err := CreateJWT(id)
	require.NoError(t, err)

	got, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestJWTExpired(t *testing.T) {
	require.NoError(t, Init(-time.Minute))

	token, err := CreateJWT(uuid.New())
	require.NoError(t, err)

	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestJWTWrongKey(t *testing.T) {
	require.NoError(t, Init(0))
	token, err := CreateJWT(uuid.New())
	require.NoError(t, err)

	// rotate keys; the old token no longer verifies
	require.NoError(t, Init(0))
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestPlayerFromRequest(t *testing.T) {
	require.NoError(t, Init(time.Hour))
	id := uuid.New()
	token, err := CreateJWT(id)
	require.NoError(t, err)

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		got, err := PlayerFromRequest(req)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		got, err := PlayerFromRequest(req)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		_, err := PlayerFromRequest(req)
		assert.ErrorIs(t, err, ErrNoToken)
	})
}
