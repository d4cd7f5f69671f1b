package public

import (
	"github.com/waimai-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// VerifyPayment 顾客发起在线支付核验
func (h *Handler) VerifyPayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	order, err := h.PaymentService.VerifyPayment(c.Request.Context(), uid, orderID)
	if err != nil {
		respondWithMappedError(c, err, paymentVerifyErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, order)
}
