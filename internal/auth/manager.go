// Package auth はアカウント登録・ログインと、セッショントークンによるリクエスト認可を提供します。
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/apierr"
	"github.com/yourusername/pg-life/internal/logging"
	"github.com/yourusername/pg-life/internal/observability"
)

// DefaultCookieName はセッショントークンを載せるクッキー名です。
const DefaultCookieName = "token"

// VerificationScheduler はメールアドレス確認の非同期処理を受け付けます。
type VerificationScheduler interface {
	ScheduleVerification(ctx context.Context, accountID string) error
}

// TicketConsumer は確認チケットを一度だけ引き換えます。
// 存在しないか期限切れのチケットでは空文字と nil を返します。
type TicketConsumer interface {
	Consume(ctx context.Context, ticket string) (string, error)
}

// CookieOptions はセッションクッキーの属性です。
type CookieOptions struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// sameSite は Secure の場合のみ None を使います。ブラウザは Secure なしの None を拒否します。
func (o CookieOptions) sameSite() http.SameSite {
	if o.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// Options は Manager の依存関係です。Accounts / Hasher / Tokens は必須です。
type Options struct {
	Accounts account.Directory
	Hasher   PasswordHasher
	Tokens   *TokenCodec
	Cookie   CookieOptions

	// 以下は任意
	DenyList     DenyList
	Verification VerificationScheduler
	Tickets      TicketConsumer
	CSRF         bool
	Logger       logging.Logger
	Metrics      *observability.Metrics
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	accounts     account.Directory
	hasher       PasswordHasher
	tokens       *TokenCodec
	cookie       CookieOptions
	denyList     DenyList
	verification VerificationScheduler
	tickets      TicketConsumer
	csrf         bool
	logger       logging.Logger
	metrics      *observability.Metrics
}

// NewManager は認証マネージャーを作成します。
func NewManager(opts Options) (*Manager, error) {
	if opts.Accounts == nil {
		return nil, errors.New("auth: account directory is required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("auth: password hasher is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("auth: token codec is required")
	}

	cookie := opts.Cookie
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if cookie.MaxAge <= 0 || cookie.MaxAge > opts.Tokens.TTL() {
		cookie.MaxAge = opts.Tokens.TTL()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Manager{
		accounts:     opts.Accounts,
		hasher:       opts.Hasher,
		tokens:       opts.Tokens,
		cookie:       cookie,
		denyList:     opts.DenyList,
		verification: opts.Verification,
		tickets:      opts.Tickets,
		csrf:         opts.CSRF,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// CreateAccount は入力を検証し、パスワードをハッシュ化してアカウントを保存します。
// 同じメールアドレスが登録済みなら ConflictError を返します。
func (m *Manager) CreateAccount(ctx context.Context, in RegisterInput, role account.Role) (*account.Account, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apierr.Validation(CodeInvalidInput, "Role must be either admin or user")
	}

	email := account.NormalizeEmail(in.Email)
	if _, err := m.accounts.GetByEmail(ctx, email); err == nil {
		return nil, userExists()
	} else if !errors.Is(err, account.ErrNotFound) {
		return nil, apierr.Internal(err, "Error during registration")
	}

	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, apierr.Validation("PASSWORD_TOO_LONG", "Password must not exceed 72 bytes")
		}
		return nil, apierr.Internal(err, "Error creating user")
	}

	acc := &account.Account{
		Name:         in.Name,
		Email:        email,
		PasswordHash: hash,
		PhoneNumber:  in.PhoneNumber,
		CollegeName:  in.CollegeName,
		Gender:       account.Gender(in.Gender),
		Role:         role,
	}
	// 事前確認と保存の間に同じメールアドレスが登録された場合もここで弾かれる
	if err := m.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			return nil, userExists()
		}
		return nil, apierr.Internal(err, "Error creating user")
	}

	m.logger.Info(ctx, "account registered", "accountId", acc.ID, "role", acc.Role)
	m.scheduleVerification(ctx, acc.ID)
	return acc, nil
}

// Authenticate はメールアドレスとパスワードを照合し、一致したアカウントを返します。
func (m *Manager) Authenticate(ctx context.Context, in LoginInput) (*account.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	acc, err := m.accounts.GetByEmail(ctx, account.NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, apierr.NotFound("USER_NOT_FOUND", "User not found")
		}
		return nil, apierr.Internal(err, "Error during login")
	}

	if !m.hasher.Verify(in.Password, acc.PasswordHash) {
		return nil, apierr.Unauthorized("INVALID_CREDENTIALS", "Invalid email or password")
	}
	return acc, nil
}

// IssueSession は acc のセッショントークンを発行します。
func (m *Manager) IssueSession(acc *account.Account) (string, *Claims, error) {
	token, claims, err := m.tokens.Issue(IdentityOf(acc))
	if err != nil {
		return "", nil, apierr.Internal(err, "Error issuing session")
	}
	return token, claims, nil
}

// EndSession は拒否リストが有効なら claims のトークンを期限まで失効させます。
func (m *Manager) EndSession(ctx context.Context, claims *Claims) error {
	if m.denyList == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	if err := m.denyList.Revoke(ctx, claims.RegisteredClaims.ID, claims.ExpiresAt.Time); err != nil {
		return apierr.Internal(err, "Error during logout")
	}
	return nil
}

// ConfirmEmail は確認チケットを引き換え、対応するアカウントを確認済みにします。
func (m *Manager) ConfirmEmail(ctx context.Context, ticket string) (*account.Account, error) {
	ticket = strings.TrimSpace(ticket)
	if ticket == "" {
		return nil, apierr.Validation(CodeMissingFields, "Verification token is required")
	}
	if m.tickets == nil {
		return nil, apierr.NotFound("VERIFICATION_NOT_FOUND", "Verification token not found")
	}

	accountID, err := m.tickets.Consume(ctx, ticket)
	if err != nil {
		return nil, apierr.Internal(err, "Error during verification")
	}
	if accountID == "" {
		return nil, apierr.NotFound("VERIFICATION_NOT_FOUND", "Verification token not found")
	}

	acc, err := m.accounts.Modify(ctx, accountID, func(a *account.Account) error {
		a.IsVerified = true
		a.VerificationToken = ""
		return nil
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, apierr.NotFound("USER_NOT_FOUND", "User not found")
		}
		return nil, apierr.Internal(err, "Error during verification")
	}

	m.logger.Info(ctx, "account verified", "accountId", acc.ID)
	return acc, nil
}

// Accounts は登録済みアカウントの表示用の値を返します。
func (m *Manager) Accounts(ctx context.Context) ([]account.View, error) {
	list, err := m.accounts.List(ctx)
	if err != nil {
		return nil, apierr.Internal(err, "Error fetching users")
	}
	views := make([]account.View, 0, len(list))
	for _, acc := range list {
		views = append(views, acc.View())
	}
	return views, nil
}

func (m *Manager) scheduleVerification(ctx context.Context, accountID string) {
	if m.verification == nil {
		return
	}
	if err := m.verification.ScheduleVerification(ctx, accountID); err != nil {
		apierr.LogError(ctx, m.logger, "failed to schedule verification",
			oops.Code("VERIFICATION_SCHEDULE_FAILED").With("accountId", accountID).Wrap(err))
	}
}

func userExists() error {
	return apierr.Conflict("USER_EXISTS", "User already exists")
}
