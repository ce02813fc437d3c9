package sale

import "errors"

// Sale ドメインのエラー定義
var (
	ErrSaleNotFound       = errors.New("売却記録が見つかりません")
	ErrUserIDRequired     = errors.New("ユーザーIDは必須です")
	ErrVehicleIDsRequired = errors.New("車両IDは必須です")
)
