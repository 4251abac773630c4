package property

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
	propertyKeyPrefix = "property:"
	propertyIndexKey  = "properties"
)

// Store は物件を JSON ドキュメントとして Redis に保存します。
//
//	property:<id>  物件本体
//	properties     作成時刻をスコアにした ID の集合
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

// Create は物件を保存し、ID と作成日時を設定します。
func (s *Store) Create(ctx context.Context, p *Property) error {
	if p == nil {
		return oops.Code("PROPERTY_INVALID").Errorf("property is nil")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	payload, err := json.Marshal(p)
	if err != nil {
		return oops.Code("PROPERTY_ENCODE").Wrap(err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, propertyKey(p.ID), payload, 0)
	pipe.ZAdd(ctx, propertyIndexKey, redis.Z{Score: float64(now.UnixNano()), Member: p.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("PROPERTY_STORE").With("op", "create", "id", p.ID).Wrap(err)
	}
	return nil
}

// Get は ID で物件を取得します。
func (s *Store) Get(ctx context.Context, id string) (*Property, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := s.rdb.Get(ctx, propertyKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("PROPERTY_STORE").With("op", "get", "id", id).Wrap(err)
	}
	return decode(data)
}

// List は作成順に物件を返します。
func (s *Store) List(ctx context.Context) ([]*Property, error) {
	ids, err := s.rdb.ZRange(ctx, propertyIndexKey, 0, -1).Result()
	if err != nil {
		return nil, oops.Code("PROPERTY_STORE").With("op", "list").Wrap(err)
	}
	if len(ids) == 0 {
		return []*Property{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = propertyKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, oops.Code("PROPERTY_STORE").With("op", "list").Wrap(err)
	}

	properties := make([]*Property, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, nil
}

// Update は WATCH による楽観的ロックで物件を更新します。ID・所有者・作成日時は変更されません。
func (s *Store) Update(ctx context.Context, id string, mutate func(*Property) error) (*Property, error) {
	key := propertyKey(id)
	var (
		updated   *Property
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
		p, err := decode(data)
		if err != nil {
			return err
		}
		owner, createdAt := p.Owner, p.CreatedAt
		if mutateErr = mutate(p); mutateErr != nil {
			return mutateErr
		}
		p.ID = id
		p.Owner = owner
		p.CreatedAt = createdAt
		p.UpdatedAt = s.now()

		payload, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		}); err != nil {
			return err
		}
		updated = p
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
		return nil, oops.Code("PROPERTY_CONCURRENT_UPDATE").With("id", id).Errorf("property was modified concurrently")
	default:
		return nil, oops.Code("PROPERTY_STORE").With("op", "update", "id", id).Wrap(err)
	}
}

// Delete は物件を削除します。存在しなければ ErrNotFound を返します。
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, propertyKey(id))
	pipe.ZRem(ctx, propertyIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("PROPERTY_STORE").With("op", "delete", "id", id).Wrap(err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func decode(data []byte) (*Property, error) {
	var p Property
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, oops.Code("PROPERTY_DECODE").Wrap(err)
	}
	return &p, nil
}

func propertyKey(id string) string {
	return propertyKeyPrefix + id
}
