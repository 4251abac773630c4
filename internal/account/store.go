package account

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const (
	accountKeyPrefix = "account:"
	emailKeyPrefix   = "account:email:"
	accountIndexKey  = "accounts"
)

// createScript はメールアドレスの予約と本体・索引の書き込みを一度に行います。
// KEYS: email, account, index / ARGV: id, payload, score
var createScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// Store はアカウントを JSON ドキュメントとして Redis に保存します。
//
//	account:<id>           アカウント本体
//	account:email:<email>  メールアドレス → ID（SETNX による一意制約）
//	accounts               作成時刻をスコアにした ID の集合
type Store struct {
	rdb *redis.Client
	now func() time.Time
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client) *Store {
	return &Store{
		rdb: rdb,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create はアカウントを保存します。ID が空なら採番します。
func (s *Store) Create(ctx context.Context, acc *Account) error {
	if acc == nil {
		return oops.Code("ACCOUNT_INVALID").Errorf("account is nil")
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	acc.Email = NormalizeEmail(acc.Email)
	if acc.Role == "" {
		acc.Role = RoleUser
	}
	now := s.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	payload, err := json.Marshal(acc)
	if err != nil {
		return oops.Code("ACCOUNT_ENCODE").Wrap(err)
	}

	keys := []string{emailKeyPrefix + acc.Email, accountKey(acc.ID), accountIndexKey}
	created, err := createScript.Run(ctx, s.rdb, keys, acc.ID, payload, acc.CreatedAt.UnixNano()).Int()
	if err != nil {
		return oops.Code("ACCOUNT_STORE").With("op", "create", "id", acc.ID).Wrap(err)
	}
	if created == 0 {
		return ErrEmailTaken
	}
	return nil
}

// GetByID は ID でアカウントを取得します。
func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := s.rdb.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("ACCOUNT_STORE").With("op", "get", "id", id).Wrap(err)
	}
	return decode(data)
}

// GetByEmail はメールアドレスでアカウントを取得します。
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	id, err := s.rdb.Get(ctx, emailKeyPrefix+NormalizeEmail(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("ACCOUNT_STORE").With("op", "get_by_email").Wrap(err)
	}
	return s.GetByID(ctx, id)
}

// Modify は WATCH による楽観的ロックでアカウントを更新します。
// メールアドレスは変更できません。
func (s *Store) Modify(ctx context.Context, id string, mutate func(*Account) error) (*Account, error) {
	key := accountKey(id)
	var (
		updated   *Account
		mutateErr error
	)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		acc, err := decode(data)
		if err != nil {
			return err
		}
		email := acc.Email
		if mutateErr = mutate(acc); mutateErr != nil {
			return mutateErr
		}
		acc.ID = id
		acc.Email = email
		acc.UpdatedAt = s.now()

		payload, err := json.Marshal(acc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = acc
		return nil
	}, key)

	switch {
	case err == nil:
		return updated, nil
	case mutateErr != nil:
		return nil, mutateErr
	case errors.Is(err, ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, redis.TxFailedErr):
		return nil, oops.Code("ACCOUNT_CONCURRENT_UPDATE").With("id", id).Errorf("account was modified concurrently")
	default:
		return nil, oops.Code("ACCOUNT_STORE").With("op", "modify", "id", id).Wrap(err)
	}
}

// List は作成順にアカウントを返します。
func (s *Store) List(ctx context.Context) ([]*Account, error) {
	ids, err := s.rdb.ZRange(ctx, accountIndexKey, 0, -1).Result()
	if err != nil {
		return nil, oops.Code("ACCOUNT_STORE").With("op", "list").Wrap(err)
	}
	if len(ids) == 0 {
		return []*Account{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = accountKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, oops.Code("ACCOUNT_STORE").With("op", "list").Wrap(err)
	}

	accounts := make([]*Account, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		acc, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

func decode(data []byte) (*Account, error) {
	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, oops.Code("ACCOUNT_DECODE").Wrap(err)
	}
	return &acc, nil
}

func accountKey(id string) string {
	return accountKeyPrefix + id
}
