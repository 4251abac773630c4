// Package property は物件情報のモデル、保存先、HTTP ハンドラーを提供します。
package property

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/pg-life/internal/apierr"
)

// ErrNotFound は指定の物件が存在しない場合に返されます。
var ErrNotFound = errors.New("property not found")

// Property は保存される物件のドキュメントです。Owner は所有者のアカウント ID です。
type Property struct {
	ID            string    `json:"id"`
	PropertyTitle string    `json:"propertyTitle"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	Location      string    `json:"location"`
	Images        []string  `json:"images"`
	Rating        float64   `json:"rating"`
	Owner         string    `json:"owner"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Input は登録・更新時に受け取る項目です。Price は 0 を許すためポインターで受けます。
type Input struct {
	PropertyTitle string   `json:"propertyTitle" binding:"required"`
	Description   string   `json:"description" binding:"required"`
	Price         *float64 `json:"price" binding:"required,gte=0"`
	Location      string   `json:"location" binding:"required"`
	Images        []string `json:"images" binding:"required,min=1,dive,required"`
	Rating        *float64 `json:"rating,omitempty" binding:"omitempty,gte=0"`
}

// inputRule は binding タグの違反を Validate と同じエラーへ対応付けます。
func inputRule(fe validator.FieldError) *apierr.Error {
	if apierr.IsMissing(fe) {
		return apierr.Validation("MISSING_FIELDS", "All fields are required")
	}
	switch fe.StructField() {
	case "Price":
		return apierr.Validation("INVALID_PRICE", "Price must not be negative")
	case "Rating":
		return apierr.Validation("INVALID_RATING", "Rating must not be negative")
	}
	return apierr.Validation("INVALID_INPUT", "Invalid "+fe.StructField())
}

// Normalize は文字列の前後の空白を取り除き、空の画像参照を捨てます。
func (in Input) Normalize() Input {
	in.PropertyTitle = strings.TrimSpace(in.PropertyTitle)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)

	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		if trimmed := strings.TrimSpace(img); trimmed != "" {
			images = append(images, trimmed)
		}
	}
	in.Images = images
	return in
}

// Validate は必須項目と数値の範囲を検証します。
func (in Input) Validate() error {
	if in.PropertyTitle == "" || in.Description == "" || in.Location == "" ||
		in.Price == nil || len(in.Images) == 0 {
		return apierr.Validation("MISSING_FIELDS", "All fields are required")
	}
	if *in.Price < 0 {
		return apierr.Validation("INVALID_PRICE", "Price must not be negative")
	}
	if in.Rating != nil && *in.Rating < 0 {
		return apierr.Validation("INVALID_RATING", "Rating must not be negative")
	}
	return nil
}

// apply は入力値を p に書き込みます。Rating が未指定なら既存の値を保ちます。
func (in Input) apply(p *Property) {
	p.PropertyTitle = in.PropertyTitle
	p.Description = in.Description
	p.Price = *in.Price
	p.Location = in.Location
	p.Images = in.Images
	if in.Rating != nil {
		p.Rating = *in.Rating
	}
}

// Repository は物件の保存先です。
type Repository interface {
	Create(ctx context.Context, p *Property) error
	Get(ctx context.Context, id string) (*Property, error)
	List(ctx context.Context) ([]*Property, error)
	// Update は ID の物件に mutate を適用して保存します。存在しなければ ErrNotFound です。
	Update(ctx context.Context, id string, mutate func(*Property) error) (*Property, error)
	Delete(ctx context.Context, id string) error
}
