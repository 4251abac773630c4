package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	// CSRFSessionName は CSRF トークンを保持する署名付きクッキーの名前です。
	CSRFSessionName = "pg_csrf"
	// CSRFHeader はクライアントが CSRF トークンを送り返すヘッダーです。
	CSRFHeader = "X-CSRF-Token"

	sessionKeyCSRF = "csrf_token"
)

// CSRFEnabled は CSRF 保護が有効かを返します。
func (m *Manager) CSRFEnabled() bool {
	return m.csrf
}

// issueCSRF は新しい CSRF トークンをセッションに保存し、レスポンスヘッダーに載せます。
// CSRF 保護が無効なら何もしません。
func (m *Manager) issueCSRF(c *gin.Context) error {
	if !m.csrf {
		return nil
	}
	token, err := generateToken()
	if err != nil {
		return err
	}
	session := sessions.Default(c)
	session.Set(sessionKeyCSRF, token)
	if err := session.Save(); err != nil {
		return err
	}
	c.Header(CSRFHeader, token)
	return nil
}

// clearCSRF はセッションから CSRF トークンを取り除きます。
func (m *Manager) clearCSRF(c *gin.Context) error {
	if !m.csrf {
		return nil
	}
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアです。
// CSRF 保護が無効な場合は常に通過させます。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.csrf || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			m.metrics.AuthEvent("csrf", "missing")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_MISSING",
				"message": "CSRF token has not been issued",
			})
			return
		}

		received := c.GetHeader(CSRFHeader)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			m.metrics.AuthEvent("csrf", "mismatch")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "CSRF token does not match",
			})
			return
		}

		c.Next()
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
