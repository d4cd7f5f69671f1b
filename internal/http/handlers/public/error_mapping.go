package public

import (
	"errors"

	handlershared "github.com/waimai-next/internal/http/handlers/shared"
	"github.com/waimai-next/internal/http/response"
	"github.com/waimai-next/internal/i18n"
	"github.com/waimai-next/internal/service"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var orderCreateErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidOrderItem, code: response.CodeBadRequest, key: "error.order_item_invalid"},
	{target: service.ErrMenuItemNotFound, code: response.CodeNotFound, key: "error.menu_item_not_found"},
	{target: service.ErrMenuItemUnavailable, code: response.CodeBadRequest, key: "error.menu_item_unavailable"},
	{target: service.ErrShopNotFound, code: response.CodeNotFound, key: "error.shop_not_found"},
	{target: service.ErrShopClosed, code: response.CodeBadRequest, key: "error.shop_closed"},
	{target: service.ErrOrderTotalInvalid, code: response.CodeBadRequest, key: "error.order_total_invalid"},
	{target: service.ErrPaymentMethodInvalid, code: response.CodeBadRequest, key: "error.payment_method_invalid"},
	{target: service.ErrPaymentGatewayRequestFailed, code: response.CodeBadGateway, key: "error.payment_gateway_request_failed"},
}

var orderQueryErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
}

var subOrderStatusErrorRules = []mappedHandlerError{
	{target: service.ErrSubOrderNotFound, code: response.CodeNotFound, key: "error.sub_order_not_found"},
	{target: service.ErrShopNotFound, code: response.CodeNotFound, key: "error.shop_not_found"},
	{target: service.ErrNotShopOwner, code: response.CodeForbidden, key: "error.not_shop_owner"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeConflict, key: "error.order_status_invalid"},
}

var rebroadcastErrorRules = []mappedHandlerError{
	{target: service.ErrAssignmentConflict, code: response.CodeConflict, key: "error.assignment_conflict"},
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
}

var paymentVerifyErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrPaymentMethodInvalid, code: response.CodeBadRequest, key: "error.payment_method_invalid"},
	{target: service.ErrPaymentAlreadyCaptured, code: response.CodeConflict, key: "error.payment_already_captured"},
	{target: service.ErrPaymentNotCaptured, code: response.CodeBadRequest, key: "error.payment_not_captured"},
	{target: service.ErrPaymentGatewayRequestFailed, code: response.CodeBadGateway, key: "error.payment_gateway_request_failed"},
}

var assignmentErrorRules = []mappedHandlerError{
	{target: service.ErrAssignmentNotFound, code: response.CodeNotFound, key: "error.assignment_not_found"},
	{target: service.ErrAssignmentConflict, code: response.CodeConflict, key: "error.assignment_conflict"},
	{target: service.ErrAssignmentNotOffered, code: response.CodeForbidden, key: "error.assignment_not_offered"},
	{target: service.ErrCourierBusy, code: response.CodeConflict, key: "error.courier_busy"},
	{target: service.ErrCourierOffShift, code: response.CodeForbidden, key: "error.courier_off_shift"},
	{target: service.ErrSubOrderNotFound, code: response.CodeNotFound, key: "error.sub_order_not_found"},
}

var deliveryErrorRules = []mappedHandlerError{
	{target: service.ErrAssignmentNotFound, code: response.CodeNotFound, key: "error.assignment_not_found"},
	{target: service.ErrNotAssignedCourier, code: response.CodeForbidden, key: "error.not_assigned_courier"},
	{target: service.ErrSubOrderNotFound, code: response.CodeNotFound, key: "error.sub_order_not_found"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeConflict, key: "error.order_status_invalid"},
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOTPNotIssued, code: response.CodeBadRequest, key: "error.otp_not_issued"},
	{target: service.ErrOTPInvalid, code: response.CodeBadRequest, key: "error.otp_invalid"},
	{target: service.ErrOTPExpired, code: response.CodeBadRequest, key: "error.otp_expired"},
	{target: service.ErrOTPEmailSendFailed, code: response.CodeBadGateway, key: "error.otp_email_send_failed"},
}

var courierErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidPosition, code: response.CodeBadRequest, key: "error.position_invalid"},
	{target: service.ErrNotAssignedCourier, code: response.CodeForbidden, key: "error.forbidden"},
}

// respondDeliveryError 收货验证码错误处理：冷却中额外返回等待秒数。
func respondDeliveryError(c *gin.Context, err error) {
	var cooldown *service.OTPCooldownError
	if errors.As(err, &cooldown) {
		locale := i18n.ResolveLocale(c)
		msg := i18n.Sprintf(locale, "error.otp_rate_limited", cooldown.WaitSeconds)
		response.ErrorWithData(c, response.CodeTooManyRequests, msg, gin.H{
			"wait_seconds": cooldown.WaitSeconds,
		})
		return
	}
	respondWithMappedError(c, err, deliveryErrorRules, response.CodeInternal, "error.internal_error")
}
