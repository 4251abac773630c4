package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb), mr
}

func sampleAccount(email string) *Account {
	return &Account{
		Name:         "Asha",
		Email:        email,
		PasswordHash: "$2a$10$hash",
		PhoneNumber:  "+919876543210",
		CollegeName:  "IIT Delhi",
		Gender:       GenderFemale,
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	acc := sampleAccount("  Asha@Example.com ")
	require.NoError(t, store.Create(ctx, acc))

	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, "asha@example.com", acc.Email)
	assert.Equal(t, RoleUser, acc.Role)
	assert.False(t, acc.CreatedAt.IsZero())

	byID, err := store.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.Email, byID.Email)
	assert.Equal(t, acc.PasswordHash, byID.PasswordHash)

	byEmail, err := store.GetByEmail(ctx, "ASHA@example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byEmail.ID)
}

func TestStoreCreateDuplicateEmail(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, sampleAccount("dup@example.com")))
	err := store.Create(ctx, sampleAccount("DUP@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)

	accounts, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

// cancelOnCreate は次の作成スクリプトの実行時に呼び出し元のコンテキストを取り消します。
// applied が true ならサーバーでの実行を終えてから取り消します。
type cancelOnCreate struct {
	cancel  context.CancelFunc
	applied bool
}

func (h *cancelOnCreate) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *cancelOnCreate) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *cancelOnCreate) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if h.cancel == nil || (cmd.Name() != "evalsha" && cmd.Name() != "eval") {
			return next(ctx, cmd)
		}
		if h.applied {
			// NOSCRIPT などで失敗した場合は次の試行まで待つ
			if err := next(ctx, cmd); err != nil {
				return err
			}
		}
		h.cancel()
		h.cancel = nil
		cmd.SetErr(context.Canceled)
		return context.Canceled
	}
}

func TestStoreCreateCancelledLeavesNoReservation(t *testing.T) {
	store, mr := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	store.rdb.AddHook(&cancelOnCreate{cancel: cancel})

	err := store.Create(ctx, sampleAccount("atomic@example.com"))
	require.Error(t, err)

	assert.False(t, mr.Exists(emailKeyPrefix+"atomic@example.com"))
	_, err = store.GetByEmail(context.Background(), "atomic@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	// 同じメールアドレスで再登録できる
	require.NoError(t, store.Create(context.Background(), sampleAccount("atomic@example.com")))
}

func TestStoreCreateCancelledAfterWriteIsConsistent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	store.rdb.AddHook(&cancelOnCreate{cancel: cancel, applied: true})

	acc := sampleAccount("atomic@example.com")
	require.Error(t, store.Create(ctx, acc))

	got, err := store.GetByEmail(context.Background(), "atomic@example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	accounts, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	err = store.Create(context.Background(), sampleAccount("atomic@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByID(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreModify(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	acc := sampleAccount("verify@example.com")
	require.NoError(t, store.Create(ctx, acc))

	updated, err := store.Modify(ctx, acc.ID, func(a *Account) error {
		a.IsVerified = true
		a.Email = "changed@example.com"
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.IsVerified)
	assert.Equal(t, "verify@example.com", updated.Email, "email is immutable")

	reloaded, err := store.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsVerified)
}

func TestStoreModifyErrors(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Modify(ctx, "missing", func(*Account) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	acc := sampleAccount("keep@example.com")
	require.NoError(t, store.Create(ctx, acc))

	sentinel := errors.New("refuse")
	_, err = store.Modify(ctx, acc.ID, func(a *Account) error {
		a.Name = "Changed"
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	reloaded, err := store.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", reloaded.Name)
}

func TestStoreListOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		acc := sampleAccount(email)
		acc.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Create(ctx, acc))
	}

	accounts, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "a@example.com", accounts[0].Email)
	assert.Equal(t, "c@example.com", accounts[2].Email)
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.GetByID(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestAccountViewOmitsSecrets(t *testing.T) {
	acc := sampleAccount("view@example.com")
	acc.ID = "id-1"
	acc.Role = RoleAdmin

	view := acc.View()
	assert.Equal(t, "id-1", view.ID)
	assert.Equal(t, RoleAdmin, view.Role)
	assert.Equal(t, GenderFemale, view.Gender)
}
