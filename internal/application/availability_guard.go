package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/metrics"
)

// 車両の販売可否ステータス
const (
	VehicleStatusAvailable = "available"
	VehicleStatusReserved  = "reserved"
	VehicleStatusSold      = "sold"
)

// AvailabilityGuard は車両単位の予約状態を管理する
// すべての読み取りパスで遅延期限切れ処理を行うため、スイーパーの実行
// タイミングに関係なく、期限切れの予約が active として観測されることはない
// 状態変更はストアの CompareAndTransition のみを通すため、
// 同じ車両への並行予約はちょうど1件だけ成功する
type AvailabilityGuard struct {
	store   reservation.Store
	clock   clock.Clock
	ttl     time.Duration
	metrics *metrics.Metrics // nil 可
}

// NewAvailabilityGuard は新しいAvailabilityGuardを作成する
func NewAvailabilityGuard(store reservation.Store, clk clock.Clock, ttl time.Duration, m *metrics.Metrics) *AvailabilityGuard {
	if ttl <= 0 {
		ttl = reservation.DefaultTTL
	}
	return &AvailabilityGuard{store: store, clock: clk, ttl: ttl, metrics: m}
}

// TTL は予約の有効期限を返す
func (g *AvailabilityGuard) TTL() time.Duration {
	return g.ttl
}

// TryReserve は車両に新しい予約を作成する
// 有効な予約が既に存在する場合は ErrAlreadyReserved、
// 売却済みの場合は ErrVehicleSold を返す
func (g *AvailabilityGuard) TryReserve(ctx context.Context, vehicleID, userID string) (*reservation.Reservation, error) {
	if err := g.expireLazily(ctx, vehicleID); err != nil {
		return nil, err
	}
	r := reservation.New(vehicleID, userID, g.clock.Now(), g.ttl)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := g.store.Put(ctx, r); err != nil {
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.ActiveReservations.Inc()
	}
	return r, nil
}

// Release は予約を解放する
// 所有者以外からの解放は ErrNotOwner、予約が存在しない（または期限切れで
// 消えた）場合は ErrNotFound を返す
func (g *AvailabilityGuard) Release(ctx context.Context, vehicleID, userID string) error {
	r, err := g.lookup(ctx, vehicleID)
	if err != nil {
		return err
	}
	if r.State == reservation.StatePurchased {
		// 売却済みはカートに存在しない
		return reservation.ErrNotFound
	}
	if !r.OwnedBy(userID) {
		return reservation.ErrNotOwner
	}
	ok, err := g.store.CompareAndTransition(ctx, vehicleID, r.ID, reservation.StateActive, reservation.StateReleased)
	if err != nil {
		return fmt.Errorf("予約の解放に失敗: %w", err)
	}
	if !ok {
		// 期限切れ処理と競合した
		return reservation.ErrNotFound
	}
	if removeErr := g.store.Remove(ctx, vehicleID, r.ID); removeErr != nil {
		return fmt.Errorf("予約の削除に失敗: %w", removeErr)
	}
	if g.metrics != nil {
		g.metrics.ActiveReservations.Dec()
	}
	return nil
}

// Finalize は予約を purchased へ遷移させる（チェックアウトの確定）
// 遅延期限切れ処理が先に走った場合は ErrExpired、
// 所有者が異なる場合は ErrNotOwner を返す
func (g *AvailabilityGuard) Finalize(ctx context.Context, vehicleID, userID string) error {
	r, err := g.lookup(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return reservation.ErrExpired
		}
		return err
	}
	if r.State == reservation.StatePurchased {
		return reservation.ErrVehicleSold
	}
	if !r.OwnedBy(userID) {
		return reservation.ErrNotOwner
	}
	ok, err := g.store.CompareAndTransition(ctx, vehicleID, r.ID, reservation.StateActive, reservation.StatePurchased)
	if err != nil {
		return fmt.Errorf("予約の確定に失敗: %w", err)
	}
	if !ok {
		// スイーパーの期限切れ処理に先を越された
		return reservation.ErrExpired
	}
	if g.metrics != nil {
		g.metrics.ActiveReservations.Dec()
	}
	return nil
}

// CheckActive は予約が有効かつ指定ユーザーの所有かを検証する（状態は変更しない）
// チェックアウトの第1フェーズ（楽観的検証）で使う
func (g *AvailabilityGuard) CheckActive(ctx context.Context, vehicleID, userID string) error {
	r, err := g.lookup(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return reservation.ErrExpired
		}
		return err
	}
	if r.State == reservation.StatePurchased {
		return reservation.ErrVehicleSold
	}
	if !r.OwnedBy(userID) {
		return reservation.ErrNotOwner
	}
	return nil
}

// ActiveByUser はユーザーの有効な予約一覧を返す
// 期限切れの予約はここで expired へ遷移させてから除外するため、
// 一覧に現れることはない
func (g *AvailabilityGuard) ActiveByUser(ctx context.Context, userID string) ([]*reservation.Reservation, error) {
	all, err := g.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	now := g.clock.Now()
	result := make([]*reservation.Reservation, 0, len(all))
	for _, r := range all {
		if !r.IsActive() {
			continue
		}
		if r.IsExpired(now) {
			if err := g.expireOne(ctx, r); err != nil {
				return nil, err
			}
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// SnapshotByUser はユーザーの active 状態の予約一覧を、期限切れ処理を
// 行わずにそのまま返す。チェックアウトのスナップショット用で、既に時間切れの
// 項目も含まれる（期限切れの報告は検証フェーズが項目ごとに行う）
func (g *AvailabilityGuard) SnapshotByUser(ctx context.Context, userID string) ([]*reservation.Reservation, error) {
	all, err := g.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	result := make([]*reservation.Reservation, 0, len(all))
	for _, r := range all {
		if r.IsActive() {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// VehicleStatus は車両の販売可否ステータスを返す
func (g *AvailabilityGuard) VehicleStatus(ctx context.Context, vehicleID string) (string, error) {
	r, err := g.lookup(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return VehicleStatusAvailable, nil
		}
		return "", err
	}
	if r.State == reservation.StatePurchased {
		return VehicleStatusSold, nil
	}
	return VehicleStatusReserved, nil
}

// SweepExpired は期限切れの active 予約をまとめて expired へ遷移させ、
// 遷移できた車両IDの一覧を返す
func (g *AvailabilityGuard) SweepExpired(ctx context.Context) ([]string, error) {
	expired, err := g.store.ListExpired(ctx, g.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}
	var swept []string
	for _, r := range expired {
		select {
		case <-ctx.Done():
			return swept, ctx.Err()
		default:
		}
		ok, err := g.store.CompareAndTransition(ctx, r.VehicleID, r.ID, reservation.StateActive, reservation.StateExpired)
		if err != nil {
			return swept, err
		}
		if !ok {
			// 遅延期限切れ処理または購入確定と競合した
			continue
		}
		if err := g.store.Remove(ctx, r.VehicleID, r.ID); err != nil {
			return swept, err
		}
		if g.metrics != nil {
			g.metrics.ActiveReservations.Dec()
		}
		swept = append(swept, r.VehicleID)
	}
	return swept, nil
}

// lookup は遅延期限切れ処理を行ってから予約を取得する
// 返るのは有効な active か purchased のみ
func (g *AvailabilityGuard) lookup(ctx context.Context, vehicleID string) (*reservation.Reservation, error) {
	if err := g.expireLazily(ctx, vehicleID); err != nil {
		return nil, err
	}
	return g.store.Get(ctx, vehicleID)
}

// expireLazily は車両の予約が期限切れなら expired へ遷移させて取り除く
func (g *AvailabilityGuard) expireLazily(ctx context.Context, vehicleID string) error {
	r, err := g.store.Get(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return nil
		}
		return err
	}
	switch {
	case r.IsActive() && r.IsExpired(g.clock.Now()):
		return g.expireOne(ctx, r)
	case r.State == reservation.StateExpired || r.State == reservation.StateReleased:
		// 削除前に観測された終端・解放済みの残骸を取り除く
		return g.store.Remove(ctx, vehicleID, r.ID)
	}
	return nil
}

// expireOne は観測済みの予約に対して active → expired の遷移と削除を行う
func (g *AvailabilityGuard) expireOne(ctx context.Context, r *reservation.Reservation) error {
	ok, err := g.store.CompareAndTransition(ctx, r.VehicleID, r.ID, reservation.StateActive, reservation.StateExpired)
	if err != nil {
		return fmt.Errorf("期限切れ遷移に失敗: %w", err)
	}
	if ok && g.metrics != nil {
		g.metrics.ActiveReservations.Dec()
	}
	// 遷移に負けた場合でも、同じ予約が残っていれば取り除く（purchased は残る）
	return g.store.Remove(ctx, r.VehicleID, r.ID)
}
