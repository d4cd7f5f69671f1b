package service

import "errors"

// 订单相关错误
var (
	ErrInvalidOrderItem    = errors.New("invalid order item")
	ErrShopNotFound        = errors.New("shop not found")
	ErrShopClosed          = errors.New("shop closed")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item unavailable")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderTotalInvalid   = errors.New("order total mismatch")
	ErrOrderStatusInvalid  = errors.New("order status transition not allowed")
	ErrSubOrderNotFound    = errors.New("sub-order not found")
	ErrNotShopOwner        = errors.New("not the owner of this shop")
	ErrShopStatusInvalid   = errors.New("invalid shop status")
)

// 支付相关错误
var (
	ErrPaymentMethodInvalid        = errors.New("invalid payment method")
	ErrPaymentAlreadyCaptured      = errors.New("payment already captured")
	ErrPaymentNotCaptured          = errors.New("payment not captured")
	ErrPaymentGatewayRequestFailed = errors.New("payment gateway request failed")
)

// 配送调度相关错误
var (
	ErrAssignmentNotFound     = errors.New("assignment not found")
	ErrAssignmentConflict     = errors.New("assignment already claimed")
	ErrAssignmentNotOffered   = errors.New("assignment not offered to courier")
	ErrCourierBusy            = errors.New("courier has too many active deliveries")
	ErrCourierOffShift        = errors.New("courier off shift")
	ErrCourierPositionMissing = errors.New("courier position missing")
	ErrInvalidPosition        = errors.New("invalid position coordinates")
	ErrNotAssignedCourier     = errors.New("not the assigned courier")
	ErrNoCourierAvailable     = errors.New("no courier available nearby")
)

// 邮件相关错误
var (
	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	ErrInvalidEmail              = errors.New("invalid email address")
)

// 收货验证码相关错误
var (
	ErrOTPRateLimited     = errors.New("otp rate limited")
	ErrOTPInvalid         = errors.New("otp invalid")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPNotIssued       = errors.New("otp not issued")
	ErrOTPEmailSendFailed = errors.New("otp email send failed")
)

// OTPCooldownError 验证码冷却错误，携带剩余等待秒数
type OTPCooldownError struct {
	WaitSeconds int
}

func (e *OTPCooldownError) Error() string {
	return "otp rate limited"
}

// Is 使 errors.Is(err, ErrOTPRateLimited) 成立
func (e *OTPCooldownError) Is(target error) bool {
	return target == ErrOTPRateLimited
}
