package application

import "errors"

// アプリケーション層のエラー定義
var (
	ErrCartEmpty = errors.New("カートは空です")
)
