package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/logger"
)

// ExpiredReservationSweeper は期限切れ予約を解放するインターフェース
type ExpiredReservationSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ExpirySweeper は期限切れ予約を定期的に解放するワーカー
// 読み取りパスの遅延期限切れ処理とは独立に走り、ガードを経由しない
// 観測者（ダッシュボード等）が見る古さの上限を抑える
type ExpirySweeper struct {
	cartService ExpiredReservationSweeper
	interval    time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewExpirySweeper は新しいスイーパーを作成する
func NewExpirySweeper(cs ExpiredReservationSweeper, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		cartService: cs,
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start はスイーパーを開始する
func (s *ExpirySweeper) Start(ctx context.Context) {
	logger.Info("期限切れ予約スイーパー開始",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れ予約スイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("期限切れ予約スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止する
func (s *ExpirySweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep は期限切れ予約を解放する
func (s *ExpirySweeper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れ予約のスイープ開始")

	count, err := s.cartService.SweepExpired(ctx)
	if err != nil {
		log.Error("期限切れ予約のスイープ失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("期限切れ予約を解放", zap.Int("count", count))
	} else {
		log.Debug("期限切れ予約なし")
	}
}
