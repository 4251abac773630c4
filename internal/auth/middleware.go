package auth

import (
	"context"
	"errors"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/apierr"
)

// 認証ミドルウェアが返すエラーコード
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeTokenRevoked = "TOKEN_REVOKED"
	CodeForbidden    = "FORBIDDEN"
)

type claimsKey struct{}

// WithClaims は検証済みのクレームを ctx に結び付けます。
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom は ctx に結び付いたクレームを返します。
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// IdentityFrom はリクエスト中の利用者情報を返します。
// RequireSession を通過していないリクエストでは false です。
func IdentityFrom(ctx context.Context) (Identity, bool) {
	claims, ok := ClaimsFrom(ctx)
	if !ok {
		return Identity{}, false
	}
	return claims.Identity, true
}

// RequireSession はセッションクッキーを検証するミドルウェアを返します。
// 検証に失敗した場合は 401 を返し、後続のハンドラーは実行されません。
func (m *Manager) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(m.cookie.Name)
		if err != nil || raw == "" {
			m.metrics.AuthEvent("session", "missing")
			apierr.Respond(c, m.logger, apierr.Unauthorized(CodeUnauthorized, "Unauthorized"))
			return
		}

		claims, err := m.tokens.Verify(raw)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				m.metrics.AuthEvent("session", "expired")
				apierr.Respond(c, m.logger, apierr.Unauthorized(CodeTokenExpired, "Session has expired"))
				return
			}
			m.metrics.AuthEvent("session", "invalid")
			apierr.Respond(c, m.logger, apierr.Unauthorized(CodeTokenInvalid, "Invalid session token"))
			return
		}

		if m.denyList != nil {
			revoked, err := m.denyList.IsRevoked(c.Request.Context(), claims.RegisteredClaims.ID)
			if err != nil {
				apierr.Respond(c, m.logger, apierr.Internal(err, "Error during authentication"))
				return
			}
			if revoked {
				m.metrics.AuthEvent("session", "revoked")
				apierr.Respond(c, m.logger, apierr.Unauthorized(CodeTokenRevoked, "Session has been revoked"))
				return
			}
		}

		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireRole は利用者のロールが roles のいずれかであることを要求します。
// RequireSession の後に置いてください。
func (m *Manager) RequireRole(roles ...account.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c.Request.Context())
		if !ok {
			apierr.Respond(c, m.logger, apierr.Unauthorized(CodeUnauthorized, "User is not authenticated"))
			return
		}
		if !slices.Contains(roles, identity.Role) {
			m.metrics.AuthEvent("role", "forbidden")
			apierr.Respond(c, m.logger, apierr.Forbidden(CodeForbidden, "You do not have permission to access this resource"))
			return
		}
		c.Next()
	}
}
