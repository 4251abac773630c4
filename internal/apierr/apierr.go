// Package apierr はAPI全体で共有するエラー分類と、HTTP レスポンスへの変換を提供します。
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/yourusername/pg-life/internal/logging"
)

// Kind はエラーの種別です。種別ごとに HTTP ステータスが決まります。
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindConflict   Kind = "ConflictError"
	KindNotFound   Kind = "NotFoundError"
	KindAuth       Kind = "AuthError"
	KindForbidden  Kind = "ForbiddenError"
	KindInternal   Kind = "InternalError"
)

// Error は利用者向けメッセージと機械可読なコードを持つエラーです。
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status は種別に対応する HTTP ステータスを返します。
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

// Internal は下位層の失敗を 500 として包みます。err はログにのみ出力されます。
func Internal(err error, message string) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// KindOf は err の種別を返します。分類されていないエラーは KindInternal です。
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// Respond は err を HTTP ステータスと {code, message} の JSON に変換して返します。
// サーバー側の失敗だけをログに出力します。
func Respond(c *gin.Context, logger logging.Logger, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Kind != KindInternal:
		c.AbortWithStatusJSON(apiErr.Status(), gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "Request was canceled",
		})
	default:
		message := "Internal server error"
		if apiErr != nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		LogError(c.Request.Context(), logger, message, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": message,
		})
	}
}

// LogError は oops エラーであればコードとコンテキストを添えて出力します。
func LogError(ctx context.Context, logger logging.Logger, msg string, err error) {
	if logger == nil {
		return
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{"error", oopsErr.Error()}
		if code := oopsErr.Code(); code != nil && code != "" {
			attrs = append(attrs, "code", code)
		}
		if fields := oopsErr.Context(); len(fields) > 0 {
			attrs = append(attrs, "context", fields)
		}
		logger.Error(ctx, msg, attrs...)
		return
	}
	logger.Error(ctx, msg, "error", err)
}
