package reservation

import (
	"time"

	"github.com/google/uuid"
)

// State は予約の状態を表す
type State string

const (
	StateActive    State = "active"
	StateExpired   State = "expired"
	StatePurchased State = "purchased"
	StateReleased  State = "released"
)

// Reservation は車両に対する時間制限付きの予約を表す
// 有効期限内はその車両を他のユーザーがカートに入れられない
type Reservation struct {
	ID        string
	VehicleID string
	UserID    string
	State     State
	CreatedAt time.Time
	ExpiresAt time.Time
}

// DefaultTTL は予約の有効期限のデフォルト値（1分）
const DefaultTTL = 60 * time.Second

// New は新しい予約を作成する
// expiresAt は createdAt + ttl で固定される
func New(vehicleID, userID string, now time.Time, ttl time.Duration) *Reservation {
	return &Reservation{
		ID:        uuid.New().String(),
		VehicleID: vehicleID,
		UserID:    userID,
		State:     StateActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsActive は予約が有効状態かを返す
func (r *Reservation) IsActive() bool {
	return r.State == StateActive
}

// IsExpired は now 時点で有効期限を過ぎているかを返す
// now == ExpiresAt の瞬間も期限切れとして扱う
func (r *Reservation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsTerminal は終端状態（purchased / expired）かを返す
// 終端状態の予約は不変で、以後の遷移は許可されない
func (r *Reservation) IsTerminal() bool {
	return r.State == StatePurchased || r.State == StateExpired
}

// OwnedBy は指定ユーザーが予約の所有者かを返す
func (r *Reservation) OwnedBy(userID string) bool {
	return r.UserID == userID
}

// Clone は予約のコピーを返す
// ストア外部に渡す際に内部状態への参照を漏らさないために使う
func (r *Reservation) Clone() *Reservation {
	c := *r
	return &c
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.VehicleID == "" {
		return ErrVehicleIDRequired
	}
	if r.UserID == "" {
		return ErrUserIDRequired
	}
	return nil
}
