package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/yourusername/pg-life/internal/account"
)

// DefaultTokenTTL はセッショントークンの既定の有効期間です。
const DefaultTokenTTL = time.Hour

var (
	// ErrTokenExpired は有効期限を過ぎたトークンに対して返されます。
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid は署名や構造が正しくないトークンに対して返されます。
	ErrTokenInvalid = errors.New("token invalid")
)

// Identity はセッションに紐づく利用者情報です。
type Identity struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Role        account.Role   `json:"role"`
	Name        string         `json:"name"`
	PhoneNumber string         `json:"phoneNumber"`
	CollegeName string         `json:"collegeName"`
	Gender      account.Gender `json:"gender"`
}

// IdentityOf はアカウントからセッション用の Identity を作ります。
func IdentityOf(acc *account.Account) Identity {
	return Identity{
		ID:          acc.ID,
		Email:       acc.Email,
		Role:        acc.Role,
		Name:        acc.Name,
		PhoneNumber: acc.PhoneNumber,
		CollegeName: acc.CollegeName,
		Gender:      acc.Gender,
	}
}

// Claims はトークンに含める内容です。
// Identity の id と登録済みクレームの jti は JSON 上で別名になります。
type Claims struct {
	Identity
	jwt.RegisteredClaims
}

// TokenCodec は HS256 で署名したセッショントークンを発行・検証します。
// 署名鍵は生成時に渡し、以後変更しません。
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec は TokenCodec を作成します。ttl が 0 以下なら DefaultTokenTTL を使います。
func NewTokenCodec(secret []byte, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL はトークンの有効期間を返します。
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue は identity を含む署名済みトークンを発行します。
func (c *TokenCodec) Issue(identity Identity) (string, *Claims, error) {
	if len(c.secret) == 0 {
		return "", nil, oops.Code("AUTH_SIGNING_KEY_MISSING").Errorf("signing key is empty")
	}

	now := c.now()
	claims := &Claims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, oops.Code("AUTH_SIGN_FAILED").Wrap(err)
	}
	return token, claims, nil
}

// Verify はトークンを検証してクレームを返します。
// 期限切れなら ErrTokenExpired、それ以外の不正は ErrTokenInvalid です。
// exp を過ぎたトークンは署名の正否にかかわらず ErrTokenExpired になります。
func (c *TokenCodec) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || c.expiredUnverified(raw) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Identity.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// expiredUnverified は署名を確かめずに exp だけを読み、期限切れかを返します。
func (c *TokenCodec) expiredUnverified(raw string) bool {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !c.now().Before(claims.ExpiresAt.Time)
}
