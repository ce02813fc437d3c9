package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/reservation"
)

type reservationRow struct {
	ID        string    `db:"id"`
	VehicleID string    `db:"vehicle_id"`
	UserID    string    `db:"user_id"`
	State     string    `db:"state"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (r *reservationRow) toEntity() *reservation.Reservation {
	return &reservation.Reservation{
		ID: r.ID, VehicleID: r.VehicleID, UserID: r.UserID,
		State: reservation.State(r.State),
		CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt,
	}
}

// ReservationStore はPostgreSQLを使用した予約ストア
// vehicle_id を主キーとし、状態遷移は条件付きUPDATEの行数で
// compare-and-transition を実現する
type ReservationStore struct{ db *sqlx.DB }

func NewReservationStore(db *sqlx.DB) *ReservationStore {
	return &ReservationStore{db: db}
}

// Put は新しい予約を登録する
func (s *ReservationStore) Put(ctx context.Context, r *reservation.Reservation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	query := `INSERT INTO reservations (vehicle_id, id, user_id, state, created_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, query, r.VehicleID, r.ID, r.UserID, string(r.State), r.CreatedAt, r.ExpiresAt); err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return s.conflictError(ctx, r.VehicleID)
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

// conflictError は主キー衝突時に既存予約の状態からエラーを選ぶ
func (s *ReservationStore) conflictError(ctx context.Context, vehicleID string) error {
	existing, err := s.Get(ctx, vehicleID)
	if err != nil {
		return reservation.ErrAlreadyReserved
	}
	if existing.State == reservation.StatePurchased {
		return reservation.ErrVehicleSold
	}
	return reservation.ErrAlreadyReserved
}

// Get は車両IDから予約を取得する
func (s *ReservationStore) Get(ctx context.Context, vehicleID string) (*reservation.Reservation, error) {
	var row reservationRow
	query := `SELECT id, vehicle_id, user_id, state, created_at, expires_at FROM reservations WHERE vehicle_id = $1`
	if err := s.db.GetContext(ctx, &row, query, vehicleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// ListByUser はユーザーIDから予約一覧を取得する
func (s *ReservationStore) ListByUser(ctx context.Context, userID string) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT id, vehicle_id, user_id, state, created_at, expires_at FROM reservations WHERE user_id = $1 ORDER BY created_at`
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

// ListExpired は now 時点で期限切れの active 予約を取得する
func (s *ReservationStore) ListExpired(ctx context.Context, now time.Time) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT id, vehicle_id, user_id, state, created_at, expires_at FROM reservations WHERE state = 'active' AND expires_at <= $1`
	if err := s.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

// Remove は車両IDの予約を削除する
// 入れ替わり検出のため reservationID の一致を条件に含め、purchased は残す
func (s *ReservationStore) Remove(ctx context.Context, vehicleID, reservationID string) error {
	query := `DELETE FROM reservations WHERE vehicle_id = $1 AND id = $2 AND state <> 'purchased'`
	if _, err := s.db.ExecContext(ctx, query, vehicleID, reservationID); err != nil {
		return fmt.Errorf("予約削除に失敗: %w", err)
	}
	return nil
}

// CompareAndTransition は予約の状態を from から to へアトミックに遷移させる
// 条件付きUPDATEの1文で行うため、読み取りと書き込みの分離による
// 競合は起きない
func (s *ReservationStore) CompareAndTransition(ctx context.Context, vehicleID, reservationID string, from, to reservation.State) (bool, error) {
	query := `UPDATE reservations SET state = $1 WHERE vehicle_id = $2 AND id = $3 AND state = $4`
	result, err := s.db.ExecContext(ctx, query, string(to), vehicleID, reservationID, string(from))
	if err != nil {
		return false, fmt.Errorf("状態遷移に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

var _ reservation.Store = (*ReservationStore)(nil)
