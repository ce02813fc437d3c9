package reservation

import (
	"context"
	"time"
)

// Store は予約ストアのインターフェース
// 車両IDをキーとして予約を保持し、1車両につき最大1件の予約を持つ
// 状態変更は CompareAndTransition のみを通して行われ、車両単位でアトミック
type Store interface {
	// Put は新しい予約を登録する
	// 同じ車両の予約が既に存在する場合は ErrAlreadyReserved、
	// 売却済み（purchased）の場合は ErrVehicleSold を返す
	Put(ctx context.Context, r *Reservation) error

	// Get は車両IDから予約を取得する（存在しない場合は ErrNotFound）
	Get(ctx context.Context, vehicleID string) (*Reservation, error)

	// ListByUser はユーザーIDから予約一覧を取得する
	ListByUser(ctx context.Context, userID string) ([]*Reservation, error)

	// ListExpired は now 時点で期限切れの active 予約を取得する
	ListExpired(ctx context.Context, now time.Time) ([]*Reservation, error)

	// Remove は車両IDの予約を削除する
	// 予約が reservationID と一致しない場合は何もしない（読み取りと削除の間に
	// 別の予約へ入れ替わっていた場合に誤って消さないため）
	// purchased の予約は売却記録として残すため削除しない
	Remove(ctx context.Context, vehicleID, reservationID string) error

	// CompareAndTransition は予約の状態を from から to へアトミックに遷移させる
	// 現在の予約が reservationID と一致しないか、状態が from と一致しない場合は
	// false を返す（遷移しない）
	CompareAndTransition(ctx context.Context, vehicleID, reservationID string, from, to State) (bool, error)
}
