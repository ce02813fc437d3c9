package reservation

import "errors"

// Reservation ドメインのエラー定義
var (
	ErrAlreadyReserved   = errors.New("車両は既に他の予約で確保されています")
	ErrVehicleSold       = errors.New("車両は既に売却済みです")
	ErrExpired           = errors.New("予約の有効期限が切れています")
	ErrNotOwner          = errors.New("予約の所有者ではありません")
	ErrNotFound          = errors.New("予約が見つかりません")
	ErrVehicleIDRequired = errors.New("車両IDは必須です")
	ErrUserIDRequired    = errors.New("ユーザーIDは必須です")
)
