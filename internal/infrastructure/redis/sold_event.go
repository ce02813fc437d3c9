package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SoldEventChannel は売却イベントを配信するPub/Subチャンネル名
// カタログサービスがこのチャンネルを購読して sold ステータスを反映する
const SoldEventChannel = "vehicle.sold"

// SoldEvent は車両売却イベントのペイロード
type SoldEvent struct {
	SaleID    string    `json:"sale_id"`
	VehicleID string    `json:"vehicle_id"`
	UserID    string    `json:"user_id"`
	SoldAt    time.Time `json:"sold_at"`
}

// SoldEventPublisher は売却イベントをRedis Pub/Subで発行する
type SoldEventPublisher struct {
	client *redis.Client
}

// NewSoldEventPublisher は新しいSoldEventPublisherを作成する
func NewSoldEventPublisher(client *redis.Client) *SoldEventPublisher {
	return &SoldEventPublisher{client: client}
}

// Publish は売却イベントを発行する
func (p *SoldEventPublisher) Publish(ctx context.Context, event SoldEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}
	if err := p.client.Publish(ctx, SoldEventChannel, payload).Err(); err != nil {
		return fmt.Errorf("売却イベント発行に失敗: %w", err)
	}
	return nil
}
