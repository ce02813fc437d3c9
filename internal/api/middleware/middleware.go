package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupMiddleware は全ルート共通のミドルウェアを設定する
// リクエストID → リカバリー → 構造化ログ → CORS の順に適用される
func SetupMiddleware(e *echo.Echo) {
	e.Use(middleware.RequestID())

	e.Use(middleware.Recover())

	// 構造化リクエストログ（zap）
	e.Use(RequestLogger())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.DELETE},
		AllowHeaders: []string{echo.HeaderContentType, "X-User-ID"},
	}))
}
