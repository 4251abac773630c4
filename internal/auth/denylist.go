package auth

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DenyList は失効させたトークンの ID を保持します。
type DenyList interface {
	// Revoke は jti を until まで拒否します。until を過ぎたトークンはどのみち期限切れです。
	Revoke(ctx context.Context, jti string, until time.Time) error
	// IsRevoked は jti が拒否されているかを返します。
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const revokedKeyPrefix = "revoked:"

// RedisDenyList は Redis のキー有効期限を使う DenyList 実装です。
type RedisDenyList struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisDenyList は RedisDenyList を作成します。
func NewRedisDenyList(rdb *redis.Client) *RedisDenyList {
	return &RedisDenyList{rdb: rdb, now: time.Now}
}

func (d *RedisDenyList) Revoke(ctx context.Context, jti string, until time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.rdb.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return oops.Code("DENYLIST_STORE").With("jti", jti).Wrap(err)
	}
	return nil
}

func (d *RedisDenyList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := d.rdb.Get(ctx, revokedKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("DENYLIST_STORE").With("jti", jti).Wrap(err)
	}
	return true, nil
}
