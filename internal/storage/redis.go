// Package storage はドキュメントストア（Redis）への接続を提供します。
package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultPingTimeout は起動時の疎通確認の待ち時間です。
const DefaultPingTimeout = 5 * time.Second

// Open は URL から Redis クライアントを作成します。接続はまだ確立しません。
func Open(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("STORE_CONFIG").Wrapf(err, "invalid store url")
	}
	return redis.NewClient(opt), nil
}

// Ping はストアに疎通できるかを確認します。
func Ping(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return oops.Code("STORE_UNAVAILABLE").With("addr", rdb.Options().Addr).Wrap(err)
	}
	return nil
}

// Status は /health 用にストアの状態を "ok" か "unavailable" で返します。
func Status(ctx context.Context, rdb *redis.Client) string {
	if rdb == nil {
		return "unavailable"
	}
	if err := Ping(ctx, rdb); err != nil {
		return "unavailable"
	}
	return "ok"
}
