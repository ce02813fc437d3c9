package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/sale"
	redisinfra "github.com/sanosuguru/go-vehicle-cart-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/metrics"
)

// CheckoutStatus はチェックアウト試行の結果を表す
type CheckoutStatus string

const (
	CheckoutCommitted CheckoutStatus = "committed"
	CheckoutAborted   CheckoutStatus = "aborted"
)

// 中断理由（レスポンスの reasons に入る値）
const (
	ReasonExpired  = "Expired"
	ReasonNotOwner = "NotOwner"
	ReasonSold     = "Sold"
)

// CheckoutResult はチェックアウト試行の結果
type CheckoutResult struct {
	Status    CheckoutStatus
	SaleID    string
	Purchased []string
	Aborted   []string
	Reasons   map[string]string
	// Compensated は全体が中断されたにもかかわらず確定してしまった車両
	// purchased は不変のため巻き戻せず、補償（返金等）の対象として報告する
	Compensated []string
}

// CheckoutService はカート内の予約をまとめて購入へ確定する
// 車両単位のアトミックな遷移しか持たないため、2フェーズの楽観的
// 検証で全件確定を狙い、検証後に期限切れと競合した僅かな窓は
// 補償で扱う（トランザクションでの防止はしない）
type CheckoutService struct {
	guard     *AvailabilityGuard
	sales     sale.Repository                // nil 可（memory ドライバー構成）
	publisher *redisinfra.SoldEventPublisher // nil 可
	cache     *redisinfra.AvailabilityCache  // nil 可
	clock     clock.Clock
	metrics   *metrics.Metrics // nil 可
}

func NewCheckoutService(guard *AvailabilityGuard, sales sale.Repository, pub *redisinfra.SoldEventPublisher, cache *redisinfra.AvailabilityCache, clk clock.Clock, m *metrics.Metrics) *CheckoutService {
	return &CheckoutService{guard: guard, sales: sales, publisher: pub, cache: cache, clock: clk, metrics: m}
}

// Checkout はユーザーのカート全体を購入へ確定する
// 全件が有効な場合のみ確定し、1件でも検証に失敗すれば中断して
// カートの有効な項目は残す
// スナップショットは期限切れ処理を挟まずに取るため、時間切れの項目は
// 消えるのではなく Expired として検証結果に現れる
func (s *CheckoutService) Checkout(ctx context.Context, userID string) (*CheckoutResult, error) {
	snapshot, err := s.guard.SnapshotByUser(ctx, userID)
	if err != nil {
		s.countCheckout("error")
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, ErrCartEmpty
	}

	// Phase 1: 全件を検証（状態は変更しない）
	reasons := make(map[string]string)
	var aborted []string
	for _, item := range snapshot {
		if err := s.guard.CheckActive(ctx, item.VehicleID, userID); err != nil {
			reasons[item.VehicleID] = reasonOf(err)
			aborted = append(aborted, item.VehicleID)
		}
	}
	if len(aborted) > 0 {
		s.countCheckout("aborted")
		return &CheckoutResult{Status: CheckoutAborted, Aborted: aborted, Reasons: reasons}, nil
	}

	// Phase 2: 全件を purchased へ確定
	var purchased []string
	for _, item := range snapshot {
		if err := s.guard.Finalize(ctx, item.VehicleID, userID); err != nil {
			reasons[item.VehicleID] = reasonOf(err)
			aborted = append(aborted, item.VehicleID)
			continue
		}
		purchased = append(purchased, item.VehicleID)
	}

	if len(aborted) > 0 {
		// Phase 1 通過後に期限切れと競合した稀なケース
		// 確定済みの車両は売却のまま残り、補償対象として報告される
		result := &CheckoutResult{
			Status:      CheckoutAborted,
			Aborted:     aborted,
			Reasons:     reasons,
			Compensated: purchased,
		}
		if len(purchased) > 0 {
			logger.Warn("チェックアウトの部分確定を検出（補償対象）",
				zap.String("user_id", userID),
				zap.Strings("purchased", purchased),
				zap.Strings("aborted", aborted),
			)
			s.recordSale(ctx, userID, purchased, result)
			s.countCheckout("partial")
		} else {
			s.countCheckout("aborted")
		}
		return result, nil
	}

	result := &CheckoutResult{Status: CheckoutCommitted, Purchased: purchased}
	s.recordSale(ctx, userID, purchased, result)
	s.countCheckout("committed")
	return result, nil
}

// recordSale は売却記録の保存と売却イベントの発行を行う
// 予約の確定は済んでいるため、ここでの失敗は購入を取り消さずログに残す
func (s *CheckoutService) recordSale(ctx context.Context, userID string, vehicleIDs []string, result *CheckoutResult) {
	sl := sale.New(userID, vehicleIDs, s.clock.Now())
	result.SaleID = sl.ID

	if s.sales != nil {
		if err := s.sales.Create(ctx, sl); err != nil {
			logger.Error("売却記録の保存に失敗",
				zap.String("sale_id", sl.ID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	for _, vehicleID := range vehicleIDs {
		if s.publisher != nil {
			event := redisinfra.SoldEvent{
				SaleID:    sl.ID,
				VehicleID: vehicleID,
				UserID:    userID,
				SoldAt:    sl.CreatedAt,
			}
			if err := s.publisher.Publish(ctx, event); err != nil {
				logger.Error("売却イベント発行に失敗", zap.String("vehicle_id", vehicleID), zap.Error(err))
			}
		}
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, vehicleID); err != nil {
				logger.Warn("ステータスキャッシュ無効化に失敗", zap.String("vehicle_id", vehicleID), zap.Error(err))
			}
		}
	}
}

func (s *CheckoutService) countCheckout(status string) {
	if s.metrics != nil {
		s.metrics.CheckoutsTotal.WithLabelValues(status).Inc()
	}
}

// reasonOf はガードのエラーをレスポンス用の理由文字列に変換する
func reasonOf(err error) string {
	switch {
	case errors.Is(err, reservation.ErrExpired):
		return ReasonExpired
	case errors.Is(err, reservation.ErrNotOwner):
		return ReasonNotOwner
	case errors.Is(err, reservation.ErrVehicleSold):
		return ReasonSold
	default:
		return err.Error()
	}
}
