package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/apierr"
)

func (m *Manager) bindJSON(c *gin.Context, dst any, rule apierr.FieldRule) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apierr.Respond(c, m.logger, apierr.Binding(err, rule))
		return false
	}
	return true
}

// Register は /api/v1/auth/register のハンドラーです。
func (m *Manager) Register(c *gin.Context) {
	var req RegisterInput
	if !m.bindJSON(c, &req, registerRule) {
		return
	}

	ctx := c.Request.Context()
	acc, err := m.CreateAccount(ctx, req, account.RoleUser)
	if err != nil {
		m.metrics.AuthEvent("register", string(apierr.KindOf(err)))
		apierr.Respond(c, m.logger, err)
		return
	}

	if !m.startSession(c, acc) {
		return
	}
	m.metrics.AuthEvent("register", "success")

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    acc.View(),
	})
}

// Login は /api/v1/auth/login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	var req LoginInput
	if !m.bindJSON(c, &req, loginRule) {
		return
	}

	acc, err := m.Authenticate(c.Request.Context(), req)
	if err != nil {
		m.metrics.AuthEvent("login", string(apierr.KindOf(err)))
		apierr.Respond(c, m.logger, err)
		return
	}

	if !m.startSession(c, acc) {
		return
	}
	m.metrics.AuthEvent("login", "success")
	m.logger.Info(c.Request.Context(), "login succeeded", "accountId", acc.ID)

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"success": true,
		"user":    acc.View(),
	})
}

// Logout は /api/v1/auth/logout のハンドラーです。RequireSession の後に置きます。
func (m *Manager) Logout(c *gin.Context) {
	claims, _ := ClaimsFrom(c.Request.Context())
	if err := m.EndSession(c.Request.Context(), claims); err != nil {
		apierr.Respond(c, m.logger, err)
		return
	}

	m.clearCookie(c)
	if err := m.clearCSRF(c); err != nil {
		apierr.Respond(c, m.logger, apierr.Internal(err, "Error during logout"))
		return
	}
	m.metrics.AuthEvent("logout", "success")

	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// Check は /api/v1/auth/check のハンドラーです。トークンに含まれる利用者情報を返します。
func (m *Manager) Check(c *gin.Context) {
	identity, ok := IdentityFrom(c.Request.Context())
	if !ok {
		apierr.Respond(c, m.logger, apierr.Unauthorized(CodeUnauthorized, "User is not authenticated"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User is authenticated",
		"user":    identity,
	})
}

// VerifyEmail は /api/v1/auth/verify のハンドラーです。
func (m *Manager) VerifyEmail(c *gin.Context) {
	acc, err := m.ConfirmEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		m.metrics.AuthEvent("verify", string(apierr.KindOf(err)))
		apierr.Respond(c, m.logger, err)
		return
	}
	m.metrics.AuthEvent("verify", "success")

	c.JSON(http.StatusOK, gin.H{
		"message": "Email verified successfully",
		"user":    acc.View(),
	})
}

// ListAccounts は /api/v1/admin/accounts のハンドラーです。
func (m *Manager) ListAccounts(c *gin.Context) {
	views, err := m.Accounts(c.Request.Context())
	if err != nil {
		apierr.Respond(c, m.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(views),
		"users": views,
	})
}

// startSession はトークンを発行してクッキーに設定します。失敗時はレスポンスを書き込み false を返します。
func (m *Manager) startSession(c *gin.Context, acc *account.Account) bool {
	token, _, err := m.IssueSession(acc)
	if err != nil {
		apierr.Respond(c, m.logger, err)
		return false
	}
	m.setCookie(c, token)

	if err := m.issueCSRF(c); err != nil {
		apierr.Respond(c, m.logger, apierr.Internal(err, "Error issuing CSRF token"))
		return false
	}
	return true
}

func (m *Manager) setCookie(c *gin.Context, token string) {
	c.SetSameSite(m.cookie.sameSite())
	c.SetCookie(m.cookie.Name, token, int(m.cookie.MaxAge.Seconds()), "/", "", m.cookie.Secure, true)
}

// clearCookie は設定時と同じ属性で Max-Age=0 のクッキーを返します。
func (m *Manager) clearCookie(c *gin.Context) {
	c.SetSameSite(m.cookie.sameSite())
	c.SetCookie(m.cookie.Name, "", -1, "/", "", m.cookie.Secure, true)
}
