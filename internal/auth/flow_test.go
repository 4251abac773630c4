package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/pg-life/internal/account"
)

// 実際の Redis ストア（miniredis）を使った登録からログアウトまでの流れ
func TestSessionLifecycleAgainstRedis(t *testing.T) {
	rdb, _ := newTestRedis(t)

	m, err := NewManager(Options{
		Accounts: account.NewStore(rdb),
		Hasher:   NewBcryptHasher(bcrypt.MinCost),
		Tokens:   NewTokenCodec([]byte(testSecret), time.Hour),
		Cookie:   CookieOptions{Secure: true, MaxAge: 24 * time.Hour},
		DenyList: NewRedisDenyList(rdb),
	})
	require.NoError(t, err)
	r := newAuthRouter(m)

	w := doJSON(r, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":        "Ada",
		"email":       "a@b.com",
		"password":    "Abcdef12",
		"phoneNumber": "+1234567890",
		"collegeName": "MIT",
		"gender":      "female",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := sessionCookie(w, DefaultCookieName)
	require.NotNil(t, token)
	// クッキーの寿命はトークンより長くならない
	assert.Equal(t, int(time.Hour.Seconds()), token.MaxAge)

	w = doJSON(r, http.MethodGet, "/api/v1/auth/check", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@b.com", decodeBody(t, w)["user"].(map[string]any)["email"])

	w = doJSON(r, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":        "Ada",
		"email":       "A@B.com",
		"password":    "Abcdef12",
		"phoneNumber": "+1234567890",
		"collegeName": "MIT",
		"gender":      "female",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", decodeBody(t, w)["message"])

	w = doJSON(r, http.MethodGet, "/api/v1/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := sessionCookie(w, DefaultCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	w = doJSON(r, http.MethodGet, "/api/v1/auth/check", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 失効済みトークンを使い回しても拒否される
	w = doJSON(r, http.MethodGet, "/api/v1/auth/check", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeTokenRevoked, decodeBody(t, w)["code"])

	w = doJSON(r, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@b.com", "password": "Abcdef12"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodGet, "/api/v1/auth/check", nil, sessionCookie(w, DefaultCookieName))
	assert.Equal(t, http.StatusOK, w.Code)
}
