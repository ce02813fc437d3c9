package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// VehicleHandler は車両の販売可否を提供するハンドラー
// カタログ本体は外部サービスが持ち、ここではこのコアが管理する
// 予約・売却状態のみを返す
type VehicleHandler struct {
	service CartServiceInterface
}

func NewVehicleHandler(s CartServiceInterface) *VehicleHandler {
	return &VehicleHandler{service: s}
}

type VehicleAvailabilityResponse struct {
	VehicleID string `json:"vehicle_id" example:"vehicle-001"`
	Status    string `json:"status" example:"available"`
}

// Availability godoc
// @Summary 車両の販売可否を取得
// @Description 車両のステータス（available / reserved / sold）を返します
// @Tags vehicles
// @Produce json
// @Param id path string true "車両ID"
// @Success 200 {object} VehicleAvailabilityResponse
// @Router /vehicles/{id}/availability [get]
func (h *VehicleHandler) Availability(c echo.Context) error {
	vehicleID := c.Param("id")
	status, err := h.service.VehicleAvailability(c.Request().Context(), vehicleID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, VehicleAvailabilityResponse{
		VehicleID: vehicleID,
		Status:    status,
	})
}
