package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/application"
)

// CheckoutHandler はチェックアウトのハンドラー
type CheckoutHandler struct {
	service CheckoutServiceInterface
}

func NewCheckoutHandler(s CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: s}
}

type CheckoutResponse struct {
	Status      string            `json:"status" example:"committed"`
	SaleID      string            `json:"sale_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Purchased   []string          `json:"purchased,omitempty" example:"vehicle-001"`
	Aborted     []string          `json:"aborted,omitempty"`
	Reasons     map[string]string `json:"reasons,omitempty"`
	Compensated []string          `json:"compensated,omitempty"`
}

func toCheckoutResponse(r *application.CheckoutResult) CheckoutResponse {
	return CheckoutResponse{
		Status:      string(r.Status),
		SaleID:      r.SaleID,
		Purchased:   r.Purchased,
		Aborted:     r.Aborted,
		Reasons:     r.Reasons,
		Compensated: r.Compensated,
	}
}

// Checkout godoc
// @Summary カートの内容を購入
// @Description カート内の全予約を検証し、全件有効な場合のみ購入を確定します
// @Tags checkout
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Success 200 {object} CheckoutResponse
// @Failure 400 {object} map[string]string "カートが空"
// @Failure 401 {object} map[string]string
// @Failure 409 {object} CheckoutResponse "検証に失敗し中断"
// @Router /checkout [post]
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	result, err := h.service.Checkout(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, application.ErrCartEmpty) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if result.Status == application.CheckoutAborted {
		return c.JSON(http.StatusConflict, toCheckoutResponse(result))
	}
	return c.JSON(http.StatusOK, toCheckoutResponse(result))
}
