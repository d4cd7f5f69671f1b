package public

import (
	"github.com/waimai-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// SendDeliveryOTPRequest 发送收货验证码请求
type SendDeliveryOTPRequest struct {
	AssignmentID uint `json:"assignment_id" binding:"required"`
}

// SendDeliveryOTP 骑手请求向顾客发送收货验证码
func (h *Handler) SendDeliveryOTP(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req SendDeliveryOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_request", err)
		return
	}

	result, err := h.DeliveryService.SendOTP(c.Request.Context(), uid, req.AssignmentID)
	if err != nil {
		respondDeliveryError(c, err)
		return
	}
	response.Success(c, result)
}

// VerifyDeliveryOTPRequest 核销收货验证码请求
type VerifyDeliveryOTPRequest struct {
	AssignmentID uint   `json:"assignment_id" binding:"required"`
	Code         string `json:"code" binding:"required"`
}

// VerifyDeliveryOTP 骑手核销收货验证码完成送达
func (h *Handler) VerifyDeliveryOTP(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req VerifyDeliveryOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_request", err)
		return
	}

	subOrder, err := h.DeliveryService.VerifyOTP(c.Request.Context(), uid, req.AssignmentID, req.Code)
	if err != nil {
		respondDeliveryError(c, err)
		return
	}
	response.Success(c, subOrder)
}
