// Package account はアカウント（利用者）のデータモデルと保存先を提供します。
package account

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Role はアカウントの権限です。
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Gender はアカウントの性別です。
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid は列挙値に含まれるかを返します。
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Valid は列挙値に含まれるかを返します。
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

var (
	// ErrNotFound は指定のアカウントが存在しない場合に返されます。
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken はメールアドレスが既に登録済みの場合に返されます。
	ErrEmailTaken = errors.New("email already registered")
)

// Account は保存されるアカウントのドキュメントです。
// PasswordHash はクライアントへ返す View には含めません。
type Account struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	PasswordHash         string     `json:"passwordHash"`
	PhoneNumber          string     `json:"phoneNumber"`
	CollegeName          string     `json:"collegeName"`
	Gender               Gender     `json:"gender"`
	Role                 Role       `json:"role"`
	IsVerified           bool       `json:"isVerified"`
	VerificationToken    string     `json:"verificationToken,omitempty"`
	ResetPasswordToken   string     `json:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time `json:"resetPasswordExpires,omitempty"`
	FavoriteProperties   []string   `json:"favoriteProperties,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// View はクライアントへ返すアカウント情報です。
type View struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	PhoneNumber string `json:"phoneNumber"`
	CollegeName string `json:"collegeName"`
	Gender      Gender `json:"gender"`
	IsVerified  bool   `json:"isVerified"`
}

// View はパスワードハッシュなどを除いた表示用の値を返します。
func (a *Account) View() View {
	return View{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Role:        a.Role,
		PhoneNumber: a.PhoneNumber,
		CollegeName: a.CollegeName,
		Gender:      a.Gender,
		IsVerified:  a.IsVerified,
	}
}

// NormalizeEmail は前後の空白を除き小文字化します。一意性の判定はこの値で行います。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Directory はアカウントの保存先です。
type Directory interface {
	// Create は新しいアカウントを保存します。メールアドレスが使用済みなら ErrEmailTaken を返します。
	Create(ctx context.Context, acc *Account) error

	// GetByID は ID でアカウントを取得します。存在しなければ ErrNotFound を返します。
	GetByID(ctx context.Context, id string) (*Account, error)

	// GetByEmail はメールアドレスでアカウントを取得します。存在しなければ ErrNotFound を返します。
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Modify は ID のアカウントを読み込み、mutate を適用して保存します。
	// 読み込みから保存までの間に他から更新された場合は失敗します。
	Modify(ctx context.Context, id string, mutate func(*Account) error) (*Account, error)

	// List は登録済みアカウントを作成順に返します。
	List(ctx context.Context) ([]*Account, error)
}
