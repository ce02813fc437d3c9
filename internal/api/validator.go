package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator はリクエストボディの検証をechoに組み込むためのラッパー
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate は構造体タグに基づく検証を実行し、失敗を400に変換する
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
