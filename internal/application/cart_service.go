package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/reservation"
	redisinfra "github.com/sanosuguru/go-vehicle-cart-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/metrics"
)

// ステータスキャッシュの有効期限
// スイーパーの実行間隔より短くし、ダッシュボードの古さを抑える
const availabilityCacheTTL = 5 * time.Second

// 車両単位の分散ロックの調整値
// ロックTTLはリクエスト処理時間より十分長く、予約TTLより十分短くする
const (
	vehicleLockTTL        = 5 * time.Second
	vehicleLockMaxRetries = 3
	vehicleLockRetryDelay = 100 * time.Millisecond
)

// CartService はユーザーごとのカート操作を提供する
// カートは独立して保存されず、常に予約ストアの active 予約から導出される
type CartService struct {
	guard       *AvailabilityGuard
	lockManager *redisinfra.LockManager       // nil 可（単一インスタンス構成）
	cache       *redisinfra.AvailabilityCache // nil 可
	metrics     *metrics.Metrics              // nil 可
}

func NewCartService(guard *AvailabilityGuard, lm *redisinfra.LockManager, cache *redisinfra.AvailabilityCache, m *metrics.Metrics) *CartService {
	return &CartService{guard: guard, lockManager: lm, cache: cache, metrics: m}
}

// AddToCart は車両をユーザーのカートに追加する（= 予約を作成する）
func (s *CartService) AddToCart(ctx context.Context, userID, vehicleID string) (*reservation.Reservation, error) {
	// 複数インスタンス構成では車両単位の分散ロックで操作を直列化
	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, vehicleID, vehicleLockTTL, vehicleLockMaxRetries, vehicleLockRetryDelay)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				s.countAddition("conflict")
				return nil, fmt.Errorf("%w: 車両は他のユーザーが操作中です", reservation.ErrAlreadyReserved)
			}
			s.countAddition("error")
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer lock.Release(ctx)
	}

	r, err := s.guard.TryReserve(ctx, vehicleID, userID)
	if err != nil {
		switch {
		case errors.Is(err, reservation.ErrAlreadyReserved):
			s.countAddition("conflict")
		case errors.Is(err, reservation.ErrVehicleSold):
			s.countAddition("sold")
		default:
			s.countAddition("error")
		}
		return nil, err
	}

	s.invalidateCache(ctx, vehicleID)
	s.countAddition("success")
	return r, nil
}

// RemoveFromCart は車両をユーザーのカートから取り除く（= 予約を解放する）
func (s *CartService) RemoveFromCart(ctx context.Context, userID, vehicleID string) error {
	if err := s.guard.Release(ctx, vehicleID, userID); err != nil {
		return err
	}
	s.invalidateCache(ctx, vehicleID)
	return nil
}

// ListCart はユーザーのカート内容（有効な予約のみ）を返す
// 期限切れの項目は一覧から消える。前回の一覧にあった項目が消えた場合、
// 呼び出し側は期限切れ通知を表示することが期待される
func (s *CartService) ListCart(ctx context.Context, userID string) ([]*reservation.Reservation, error) {
	return s.guard.ActiveByUser(ctx, userID)
}

// VehicleAvailability は車両の販売可否ステータスを返す
// ダッシュボード向けの読み取りパスで、キャッシュがあれば優先する
func (s *CartService) VehicleAvailability(ctx context.Context, vehicleID string) (string, error) {
	if s.cache != nil {
		if status, err := s.cache.GetStatus(ctx, vehicleID); err == nil {
			return status, nil
		}
	}
	status, err := s.guard.VehicleStatus(ctx, vehicleID)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.SetStatus(ctx, vehicleID, status, availabilityCacheTTL); err != nil {
			logger.Warn("ステータスキャッシュ保存に失敗", zap.String("vehicle_id", vehicleID), zap.Error(err))
		}
	}
	return status, nil
}

// SweepExpired は期限切れの予約をまとめて解放する（スイーパーから呼ばれる）
func (s *CartService) SweepExpired(ctx context.Context) (int, error) {
	swept, err := s.guard.SweepExpired(ctx)
	for _, vehicleID := range swept {
		s.invalidateCache(ctx, vehicleID)
	}
	if s.metrics != nil && len(swept) > 0 {
		s.metrics.SweptReservationsTotal.Add(float64(len(swept)))
	}
	return len(swept), err
}

func (s *CartService) invalidateCache(ctx context.Context, vehicleID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, vehicleID); err != nil {
		logger.Warn("ステータスキャッシュ無効化に失敗", zap.String("vehicle_id", vehicleID), zap.Error(err))
	}
}

func (s *CartService) countAddition(status string) {
	if s.metrics != nil {
		s.metrics.CartAdditionsTotal.WithLabelValues(status).Inc()
	}
}
