package sale

import "context"

// Repository は売却記録リポジトリのインターフェース
type Repository interface {
	// Create は新しい売却記録を保存する
	Create(ctx context.Context, s *Sale) error

	// GetByID はIDから売却記録を取得する
	GetByID(ctx context.Context, id string) (*Sale, error)

	// GetByUserID はユーザーIDから売却記録一覧を取得する
	GetByUserID(ctx context.Context, userID string) ([]*Sale, error)
}
