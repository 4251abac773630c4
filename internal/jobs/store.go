package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const ticketKeyPrefix = "verify:"

// TicketStore はメールアドレス確認チケットを Redis に保存します。
//
//	verify:<ticket>  アカウント ID（有効期限付き）
type TicketStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTicketStore は TicketStore を作成します。ttl が 0 以下なら DefaultTicketTTL を使います。
func NewTicketStore(rdb *redis.Client, ttl time.Duration) *TicketStore {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &TicketStore{
		rdb: rdb,
		ttl: ttl,
	}
}

// Issue は accountID に対する新しいチケットを発行します。
func (s *TicketStore) Issue(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", oops.Code("TICKET_INVALID").Errorf("accountID is required")
	}
	ticket := uuid.NewString()
	if err := s.rdb.Set(ctx, ticketKey(ticket), accountID, s.ttl).Err(); err != nil {
		return "", oops.Code("TICKET_STORE").With("accountId", accountID).Wrap(err)
	}
	return ticket, nil
}

// Consume はチケットを削除し、対応するアカウント ID を返します。
// 存在しないか期限切れなら空文字と nil を返します。
func (s *TicketStore) Consume(ctx context.Context, ticket string) (string, error) {
	if ticket == "" {
		return "", nil
	}
	accountID, err := s.rdb.GetDel(ctx, ticketKey(ticket)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", oops.Code("TICKET_STORE").Wrap(err)
	}
	return accountID, nil
}

func ticketKey(ticket string) string {
	return ticketKeyPrefix + ticket
}
