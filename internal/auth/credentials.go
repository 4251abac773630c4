package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/apierr"
)

// 入力検証で返すエラーコード
const (
	CodeInvalidInput  = apierr.CodeInvalidInput
	CodeMissingFields = "MISSING_FIELDS"
	CodeInvalidFormat = "INVALID_FORMAT"
	CodeWeakPassword  = "WEAK_PASSWORD"
)

// MinPasswordLength はパスワードの最小文字数です。
const MinPasswordLength = 8

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// ValidateEmail は local@domain.tld 形式かを検証します。
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return apierr.Validation(CodeInvalidFormat, "Invalid email format")
	}
	return nil
}

// ValidatePassword は 8 文字以上で英小文字・英大文字・数字をそれぞれ含むかを検証します。
func ValidatePassword(password string) error {
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case 'a' <= r && r <= 'z':
			lower = true
		case 'A' <= r && r <= 'Z':
			upper = true
		case '0' <= r && r <= '9':
			digit = true
		}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength || !lower || !upper || !digit {
		return apierr.Validation(CodeWeakPassword,
			"Password must be at least 8 characters long, contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return nil
}

// ValidatePhone は国際電話番号の形式（先頭の + は任意）かを検証します。
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return apierr.Validation(CodeInvalidFormat, "Invalid phone number format")
	}
	return nil
}

// ValidateGender は male / female のいずれかかを検証します。
func ValidateGender(gender string) error {
	if !account.Gender(gender).Valid() {
		return apierr.Validation(CodeInvalidFormat, "Gender must be either male or female")
	}
	return nil
}

// RegisterInput は登録時に受け取る項目です。
// binding タグは HTTP で受け取る時点の検査で、書式は Validate が検証します。
type RegisterInput struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	CollegeName string `json:"collegeName" binding:"required"`
	Gender      string `json:"gender" binding:"required,oneof=male female"`
}

func registerRule(fe validator.FieldError) *apierr.Error {
	if apierr.IsMissing(fe) {
		return apierr.Validation(CodeMissingFields, "All fields are required")
	}
	if fe.StructField() == "Gender" {
		return apierr.Validation(CodeInvalidFormat, "Gender must be either male or female")
	}
	return apierr.Validation(CodeInvalidFormat, "Invalid "+fe.StructField())
}

// Normalize はパスワード以外の前後の空白を取り除きます。
func (in RegisterInput) Normalize() RegisterInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.CollegeName = strings.TrimSpace(in.CollegeName)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	return in
}

// Validate は必須項目と各項目の形式を順に検証し、最初の違反を返します。
func (in RegisterInput) Validate() error {
	if in.Name == "" || in.Email == "" || in.Password == "" ||
		in.PhoneNumber == "" || in.CollegeName == "" || in.Gender == "" {
		return apierr.Validation(CodeMissingFields, "All fields are required")
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	if err := ValidatePhone(in.PhoneNumber); err != nil {
		return err
	}
	return ValidateGender(in.Gender)
}

// LoginInput はログイン時に受け取る項目です。
type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginRule(validator.FieldError) *apierr.Error {
	return apierr.Validation(CodeMissingFields, "Email and password are required")
}

// Validate は必須項目とメールアドレスの形式を検証します。
func (in LoginInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return apierr.Validation(CodeMissingFields, "Email and password are required")
	}
	return ValidateEmail(strings.TrimSpace(in.Email))
}
