package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/sale"
)

type saleRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// SaleRepository はPostgreSQLを使用した売却記録リポジトリ
type SaleRepository struct{ db *sqlx.DB }

func NewSaleRepository(db *sqlx.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// Create は売却記録と対象車両をローカルトランザクションで保存する
func (r *SaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	if err := s.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO sales (id, user_id, created_at) VALUES ($1, $2, $3)`, s.ID, s.UserID, s.CreatedAt); err != nil {
		return fmt.Errorf("売却記録作成に失敗: %w", err)
	}
	for _, vehicleID := range s.VehicleIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sale_vehicles (sale_id, vehicle_id) VALUES ($1, $2)`, s.ID, vehicleID); err != nil {
			return fmt.Errorf("売却車両関連付けに失敗: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// GetByID はIDから売却記録を取得する
func (r *SaleRepository) GetByID(ctx context.Context, id string) (*sale.Sale, error) {
	var row saleRow
	if err := r.db.GetContext(ctx, &row, `SELECT id, user_id, created_at FROM sales WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrSaleNotFound
		}
		return nil, fmt.Errorf("売却記録取得に失敗: %w", err)
	}
	vehicleIDs, err := r.getVehicleIDs(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return &sale.Sale{ID: row.ID, UserID: row.UserID, VehicleIDs: vehicleIDs, CreatedAt: row.CreatedAt}, nil
}

// GetByUserID はユーザーIDから売却記録一覧を取得する
func (r *SaleRepository) GetByUserID(ctx context.Context, userID string) ([]*sale.Sale, error) {
	var rows []saleRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, user_id, created_at FROM sales WHERE user_id = $1 ORDER BY created_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("売却記録一覧取得に失敗: %w", err)
	}
	result := make([]*sale.Sale, len(rows))
	for i, row := range rows {
		vehicleIDs, err := r.getVehicleIDs(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		result[i] = &sale.Sale{ID: row.ID, UserID: row.UserID, VehicleIDs: vehicleIDs, CreatedAt: row.CreatedAt}
	}
	return result, nil
}

func (r *SaleRepository) getVehicleIDs(ctx context.Context, saleID string) ([]string, error) {
	var vehicleIDs []string
	if err := r.db.SelectContext(ctx, &vehicleIDs, `SELECT vehicle_id FROM sale_vehicles WHERE sale_id = $1`, saleID); err != nil {
		return nil, fmt.Errorf("売却車両取得に失敗: %w", err)
	}
	return vehicleIDs, nil
}

var _ sale.Repository = (*SaleRepository)(nil)
