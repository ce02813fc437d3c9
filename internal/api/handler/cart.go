package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/reservation"
)

// CartHandler はカート操作のハンドラー
type CartHandler struct {
	service CartServiceInterface
}

func NewCartHandler(s CartServiceInterface) *CartHandler {
	return &CartHandler{service: s}
}

type AddToCartRequest struct {
	VehicleID string `json:"vehicle_id" validate:"required" example:"vehicle-001"`
}

type CartItemResponse struct {
	ReservationID string    `json:"reservation_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	VehicleID     string    `json:"vehicle_id" example:"vehicle-001"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func toCartItemResponse(r *reservation.Reservation) CartItemResponse {
	return CartItemResponse{
		ReservationID: r.ID,
		VehicleID:     r.VehicleID,
		ExpiresAt:     r.ExpiresAt,
		CreatedAt:     r.CreatedAt,
	}
}

// Add godoc
// @Summary 車両をカートに追加
// @Description 車両を時間制限付きで確保します（デフォルト60秒）
// @Tags cart
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body AddToCartRequest true "追加する車両"
// @Success 201 {object} CartItemResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string "車両が既に予約済みまたは売却済み"
// @Router /cart/items [post]
func (h *CartHandler) Add(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req AddToCartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.service.AddToCart(c.Request().Context(), userID, req.VehicleID)
	if err != nil {
		switch {
		case errors.Is(err, reservation.ErrAlreadyReserved), errors.Is(err, reservation.ErrVehicleSold):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, reservation.ErrVehicleIDRequired):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toCartItemResponse(r))
}

// Remove godoc
// @Summary 車両をカートから削除
// @Description カート内の予約を解放し、車両を再び購入可能にします
// @Tags cart
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param vehicleId path string true "車両ID"
// @Success 204
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string "予約の所有者ではない"
// @Failure 404 {object} map[string]string
// @Router /cart/items/{vehicleId} [delete]
func (h *CartHandler) Remove(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	vehicleID := c.Param("vehicleId")
	if err := h.service.RemoveFromCart(c.Request().Context(), userID, vehicleID); err != nil {
		switch {
		case errors.Is(err, reservation.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, reservation.ErrNotOwner):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// List godoc
// @Summary カートの内容を取得
// @Description 有効な予約のみを返します（期限切れの項目は一覧から消えます）
// @Tags cart
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Success 200 {array} CartItemResponse
// @Failure 401 {object} map[string]string
// @Router /cart [get]
func (h *CartHandler) List(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	items, err := h.service.ListCart(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]CartItemResponse, len(items))
	for i, r := range items {
		resp[i] = toCartItemResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}
