package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/metrics"
)

// PrometheusMiddleware はリクエスト数とレイテンシを収集するミドルウェア
// path ラベルにはルートパターン（:vehicleId 等）を使い、カーディナリティの
// 爆発を避ける
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method

			m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
