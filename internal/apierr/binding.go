package apierr

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// CodeInvalidInput はリクエストボディを構造体へ変換できなかった場合のコードです。
const CodeInvalidInput = "INVALID_INPUT"

// FieldRule は binding タグの違反を API エラーへ対応付けます。
type FieldRule func(fe validator.FieldError) *Error

// Binding は ShouldBindJSON が返したエラーを検証エラーへ変換します。
// タグ違反は先頭の違反を rule で変換し、JSON の構文誤りなどは INVALID_INPUT にします。
func Binding(err error, rule FieldRule) *Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Validation(CodeInvalidInput, "Request body must be a JSON object")
	}

	// 必須項目の欠落は他の違反より優先する
	for _, fe := range verrs {
		if IsMissing(fe) {
			return rule(fe)
		}
	}
	return rule(verrs[0])
}

// IsMissing は値の欠落を表すタグかを返します。
func IsMissing(fe validator.FieldError) bool {
	switch fe.Tag() {
	case "required", "min":
		return true
	}
	return false
}
