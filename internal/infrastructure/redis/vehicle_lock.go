package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// VehicleLock は Redis を使用した車両単位の分散ロック
// 複数インスタンスで稼働する場合に、同じ車両への操作を直列化する
type VehicleLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// LockManager は車両ロックを管理する
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireLock は車両のロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, vehicleID string, ttl time.Duration) (*VehicleLock, error) {
	lockKey := fmt.Sprintf("lock:vehicle:%s", vehicleID)
	lockValue := uuid.New().String()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &VehicleLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, vehicleID string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*VehicleLock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, vehicleID, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Release はロックを解放する（Lua スクリプトで所有者確認と削除をアトミックに実行）
func (l *VehicleLock) Release(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}
