package sale

import (
	"time"

	"github.com/google/uuid"
)

// Sale は確定した購入の記録を表す
// チェックアウトが Committed になった時点で作成され、以後変更されない
type Sale struct {
	ID         string
	UserID     string
	VehicleIDs []string
	CreatedAt  time.Time
}

// New は新しい売却記録を作成する
func New(userID string, vehicleIDs []string, now time.Time) *Sale {
	ids := make([]string, len(vehicleIDs))
	copy(ids, vehicleIDs)
	return &Sale{
		ID:         uuid.New().String(),
		UserID:     userID,
		VehicleIDs: ids,
		CreatedAt:  now,
	}
}

// Validate は売却記録の検証を行う
func (s *Sale) Validate() error {
	if s.UserID == "" {
		return ErrUserIDRequired
	}
	if len(s.VehicleIDs) == 0 {
		return ErrVehicleIDsRequired
	}
	return nil
}
