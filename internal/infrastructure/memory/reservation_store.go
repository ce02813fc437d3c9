package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/reservation"
)

// シャード数（車両IDのハッシュで分散させ、車両間の競合を避ける）
const shardCount = 32

type shard struct {
	mu           sync.Mutex
	reservations map[string]*reservation.Reservation // vehicleID -> reservation
}

// ReservationStore はインメモリの予約ストア
// シャードごとのミューテックスで車両単位の排他を実現し、
// グローバルロックは持たない
type ReservationStore struct {
	shards [shardCount]*shard
}

// NewReservationStore は新しいインメモリストアを作成する
func NewReservationStore() *ReservationStore {
	s := &ReservationStore{}
	for i := 0; i < shardCount; i++ {
		s.shards[i] = &shard{reservations: make(map[string]*reservation.Reservation)}
	}
	return s
}

func (s *ReservationStore) shardFor(vehicleID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return s.shards[h.Sum32()%shardCount]
}

// Put は新しい予約を登録する
// 同じ車両の予約が残っている場合は登録せずエラーを返す
func (s *ReservationStore) Put(ctx context.Context, r *reservation.Reservation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	sh := s.shardFor(r.VehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if existing, ok := sh.reservations[r.VehicleID]; ok {
		if existing.State == reservation.StatePurchased {
			return reservation.ErrVehicleSold
		}
		return reservation.ErrAlreadyReserved
	}
	sh.reservations[r.VehicleID] = r.Clone()
	return nil
}

// Get は車両IDから予約を取得する
func (s *ReservationStore) Get(ctx context.Context, vehicleID string) (*reservation.Reservation, error) {
	sh := s.shardFor(vehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.reservations[vehicleID]
	if !ok {
		return nil, reservation.ErrNotFound
	}
	return r.Clone(), nil
}

// ListByUser はユーザーIDから予約一覧を取得する
func (s *ReservationStore) ListByUser(ctx context.Context, userID string) ([]*reservation.Reservation, error) {
	var result []*reservation.Reservation
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, r := range sh.reservations {
			if r.UserID == userID {
				result = append(result, r.Clone())
			}
		}
		sh.mu.Unlock()
	}
	return result, nil
}

// ListExpired は now 時点で期限切れの active 予約を取得する
func (s *ReservationStore) ListExpired(ctx context.Context, now time.Time) ([]*reservation.Reservation, error) {
	var result []*reservation.Reservation
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, r := range sh.reservations {
			if r.State == reservation.StateActive && r.IsExpired(now) {
				result = append(result, r.Clone())
			}
		}
		sh.mu.Unlock()
	}
	return result, nil
}

// Remove は車両IDの予約を削除する
// 予約の入れ替わりを検出するため reservationID が一致する場合のみ削除し、
// purchased の予約は売却記録として残す
func (s *ReservationStore) Remove(ctx context.Context, vehicleID, reservationID string) error {
	sh := s.shardFor(vehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.reservations[vehicleID]
	if !ok {
		return nil
	}
	if r.ID != reservationID || r.State == reservation.StatePurchased {
		return nil
	}
	delete(sh.reservations, vehicleID)
	return nil
}

// CompareAndTransition は予約の状態を from から to へアトミックに遷移させる
// シャードのロック内で読み取りと書き込みを行うため、
// 同じ車両への並行遷移はちょうど1つだけ成功する
func (s *ReservationStore) CompareAndTransition(ctx context.Context, vehicleID, reservationID string, from, to reservation.State) (bool, error) {
	sh := s.shardFor(vehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.reservations[vehicleID]
	if !ok {
		return false, nil
	}
	if r.ID != reservationID || r.State != from {
		return false, nil
	}
	r.State = to
	return true, nil
}

var _ reservation.Store = (*ReservationStore)(nil)
