package public

import (
	"github.com/waimai-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// UpdatePositionRequest 骑手位置上报请求
type UpdatePositionRequest struct {
	Lat float64 `json:"lat" binding:"required"`
	Lon float64 `json:"lon" binding:"required"`
}

// UpdateCourierPosition 骑手位置上报
func (h *Handler) UpdateCourierPosition(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req UpdatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_request", err)
		return
	}

	if err := h.CourierService.UpdatePosition(c.Request.Context(), uid, req.Lat, req.Lon); err != nil {
		respondWithMappedError(c, err, courierErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, nil)
}

// SetShiftRequest 上下班请求
type SetShiftRequest struct {
	OnShift *bool `json:"on_shift" binding:"required"`
}

// SetCourierShift 骑手上下班
func (h *Handler) SetCourierShift(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req SetShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_request", err)
		return
	}

	courier, err := h.CourierService.SetShift(c.Request.Context(), uid, *req.OnShift)
	if err != nil {
		respondWithMappedError(c, err, courierErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, courier)
}
