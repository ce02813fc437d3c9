package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// AvailabilityCache は車両の販売可否ステータスのキャッシュを管理する
// ダッシュボード等の読み取り専用パスの負荷をストアから逃がすために使う
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// GetStatus は車両のステータスをキャッシュから取得する
func (c *AvailabilityCache) GetStatus(ctx context.Context, vehicleID string) (string, error) {
	val, err := c.client.Get(ctx, c.statusKey(vehicleID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetStatus は車両のステータスをキャッシュに保存する
func (c *AvailabilityCache) SetStatus(ctx context.Context, vehicleID, status string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.statusKey(vehicleID), status, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は車両のキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, vehicleID string) error {
	if err := c.client.Del(ctx, c.statusKey(vehicleID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) statusKey(vehicleID string) string {
	return fmt.Sprintf("vehicles:status:%s", vehicleID)
}
