package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/clock"
)

func newTestGuard(t *testing.T) (*AvailabilityGuard, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	guard := NewAvailabilityGuard(memory.NewReservationStore(), clk, 60*time.Second, nil)
	return guard, clk
}

func TestAvailabilityGuard_TryReserve(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	r, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)
	assert.Equal(t, reservation.StateActive, r.State)
	assert.Equal(t, clk.Now().Add(60*time.Second), r.ExpiresAt)
}

func TestAvailabilityGuard_TryReserve_Conflict(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	// 有効な予約がある間は別ユーザーも本人も予約できない
	_, err = guard.TryReserve(ctx, "vehicle-001", "user-002")
	assert.ErrorIs(t, err, reservation.ErrAlreadyReserved)

	_, err = guard.TryReserve(ctx, "vehicle-001", "user-001")
	assert.ErrorIs(t, err, reservation.ErrAlreadyReserved)
}

func TestAvailabilityGuard_TryReserve_AfterExpiry(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	first, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	// 期限切れ後は遅延期限切れ処理が走り、別ユーザーが予約できる
	clk.Advance(61 * time.Second)

	second, err := guard.TryReserve(ctx, "vehicle-001", "user-002")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "user-002", second.UserID)
}

func TestAvailabilityGuard_TryReserve_ExactlyAtExpiry(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	// 期限ちょうどの時刻でも期限切れ扱いになる
	clk.Advance(60 * time.Second)

	_, err = guard.TryReserve(ctx, "vehicle-001", "user-002")
	assert.NoError(t, err)
}

func TestAvailabilityGuard_TryReserve_SoldVehicle(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)
	require.NoError(t, guard.Finalize(ctx, "vehicle-001", "user-001"))

	// 売却済みの車両は時間が経っても予約できない
	clk.Advance(24 * time.Hour)
	_, err = guard.TryReserve(ctx, "vehicle-001", "user-002")
	assert.ErrorIs(t, err, reservation.ErrVehicleSold)
}

func TestAvailabilityGuard_Release(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	require.NoError(t, guard.Release(ctx, "vehicle-001", "user-001"))

	// 解放後は即座に別ユーザーが予約できる
	_, err = guard.TryReserve(ctx, "vehicle-001", "user-002")
	assert.NoError(t, err)
}

func TestAvailabilityGuard_Release_NotOwner(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	err = guard.Release(ctx, "vehicle-001", "user-002")
	assert.ErrorIs(t, err, reservation.ErrNotOwner)

	// 所有者エラーでは予約は消えない
	list, err := guard.ActiveByUser(ctx, "user-001")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAvailabilityGuard_Release_NotFound(t *testing.T) {
	guard, _ := newTestGuard(t)

	err := guard.Release(context.Background(), "vehicle-999", "user-001")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestAvailabilityGuard_Release_Expired(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	// 期限切れの予約は解放対象として見えない
	clk.Advance(61 * time.Second)
	err = guard.Release(ctx, "vehicle-001", "user-001")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestAvailabilityGuard_Finalize(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	require.NoError(t, guard.Finalize(ctx, "vehicle-001", "user-001"))

	status, err := guard.VehicleStatus(ctx, "vehicle-001")
	require.NoError(t, err)
	assert.Equal(t, VehicleStatusSold, status)
}

func TestAvailabilityGuard_Finalize_Expired(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	clk.Advance(61 * time.Second)

	err = guard.Finalize(ctx, "vehicle-001", "user-001")
	assert.ErrorIs(t, err, reservation.ErrExpired)
}

func TestAvailabilityGuard_Finalize_NotOwner(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	err = guard.Finalize(ctx, "vehicle-001", "user-002")
	assert.ErrorIs(t, err, reservation.ErrNotOwner)
}

func TestAvailabilityGuard_Finalize_AlreadySold(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)
	require.NoError(t, guard.Finalize(ctx, "vehicle-001", "user-001"))

	err = guard.Finalize(ctx, "vehicle-001", "user-001")
	assert.ErrorIs(t, err, reservation.ErrVehicleSold)
}

func TestAvailabilityGuard_CheckActive(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	t.Run("有効な予約は検証を通る", func(t *testing.T) {
		assert.NoError(t, guard.CheckActive(ctx, "vehicle-001", "user-001"))
	})

	t.Run("所有者が異なる", func(t *testing.T) {
		assert.ErrorIs(t, guard.CheckActive(ctx, "vehicle-001", "user-002"), reservation.ErrNotOwner)
	})

	t.Run("期限切れ", func(t *testing.T) {
		clk.Advance(61 * time.Second)
		assert.ErrorIs(t, guard.CheckActive(ctx, "vehicle-001", "user-001"), reservation.ErrExpired)
	})
}

func TestAvailabilityGuard_ActiveByUser(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	clk.Advance(30 * time.Second)
	_, err = guard.TryReserve(ctx, "vehicle-002", "user-001")
	require.NoError(t, err)

	// 最初の予約だけが期限切れになる時点まで進める
	clk.Advance(31 * time.Second)

	list, err := guard.ActiveByUser(ctx, "user-001")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "vehicle-002", list[0].VehicleID)

	// 期限切れになった車両は別ユーザーが予約できる
	_, err = guard.TryReserve(ctx, "vehicle-001", "user-002")
	assert.NoError(t, err)
}

func TestAvailabilityGuard_ActiveByUser_SortedByCreatedAt(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-b", "user-001")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = guard.TryReserve(ctx, "vehicle-a", "user-001")
	require.NoError(t, err)

	list, err := guard.ActiveByUser(ctx, "user-001")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "vehicle-b", list[0].VehicleID)
	assert.Equal(t, "vehicle-a", list[1].VehicleID)
}

func TestAvailabilityGuard_SnapshotByUser_KeepsExpiredItems(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)

	clk.Advance(61 * time.Second)

	// スナップショットは期限切れ処理を行わないため、時間切れの項目も残る
	snapshot, err := guard.SnapshotByUser(ctx, "user-001")
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "vehicle-001", snapshot[0].VehicleID)
	assert.True(t, snapshot[0].IsExpired(clk.Now()))

	// ActiveByUser は同じ項目を期限切れとして除外する
	list, err := guard.ActiveByUser(ctx, "user-001")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAvailabilityGuard_VehicleStatus(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	t.Run("予約なしはavailable", func(t *testing.T) {
		status, err := guard.VehicleStatus(ctx, "vehicle-001")
		require.NoError(t, err)
		assert.Equal(t, VehicleStatusAvailable, status)
	})

	t.Run("有効な予約があればreserved", func(t *testing.T) {
		_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
		require.NoError(t, err)

		status, err := guard.VehicleStatus(ctx, "vehicle-001")
		require.NoError(t, err)
		assert.Equal(t, VehicleStatusReserved, status)
	})

	t.Run("期限切れ後はavailableに戻る", func(t *testing.T) {
		clk.Advance(61 * time.Second)

		status, err := guard.VehicleStatus(ctx, "vehicle-001")
		require.NoError(t, err)
		assert.Equal(t, VehicleStatusAvailable, status)
	})
}

func TestAvailabilityGuard_SweepExpired(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)
	_, err = guard.TryReserve(ctx, "vehicle-002", "user-002")
	require.NoError(t, err)

	clk.Advance(30 * time.Second)
	_, err = guard.TryReserve(ctx, "vehicle-003", "user-001")
	require.NoError(t, err)

	clk.Advance(31 * time.Second)

	swept, err := guard.SweepExpired(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vehicle-001", "vehicle-002"}, swept)

	// 掃除後は期限切れだった車両が予約可能になり、有効な予約は残る
	_, err = guard.TryReserve(ctx, "vehicle-001", "user-003")
	assert.NoError(t, err)

	list, err := guard.ActiveByUser(ctx, "user-001")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "vehicle-003", list[0].VehicleID)
}

func TestAvailabilityGuard_SweepExpired_SkipsPurchased(t *testing.T) {
	guard, clk := newTestGuard(t)
	ctx := context.Background()

	_, err := guard.TryReserve(ctx, "vehicle-001", "user-001")
	require.NoError(t, err)
	require.NoError(t, guard.Finalize(ctx, "vehicle-001", "user-001"))

	clk.Advance(61 * time.Second)

	swept, err := guard.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, swept)

	status, err := guard.VehicleStatus(ctx, "vehicle-001")
	require.NoError(t, err)
	assert.Equal(t, VehicleStatusSold, status)
}

func TestAvailabilityGuard_ConcurrentTryReserve(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := guard.TryReserve(ctx, "vehicle-001", "user-001"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// 同じ車両への並行予約はちょうど1件だけ成功する
	assert.Equal(t, 1, succeeded)
}
