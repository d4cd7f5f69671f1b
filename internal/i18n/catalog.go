package i18n

import "github.com/waimai-next/internal/constants"

// catalogs 各语言文案表
var catalogs = map[string]map[string]string{
	constants.LocaleZhCN: {
		"error.invalid_request":        "请求参数有误",
		"error.unauthorized":           "请先登录",
		"error.forbidden":              "没有操作权限",
		"error.not_found":              "资源不存在",
		"error.internal_error":         "服务器内部错误",
		"error.rate_limit_exceeded":    "请求过于频繁，请稍后再试",
		"error.rate_limit_unavailable": "限流服务不可用",
		"error.user_id_invalid":        "用户标识无效",
		"error.user_id_type_invalid":   "用户标识类型错误",
		"error.position_invalid":       "位置坐标无效",

		"error.auth_header_missing":  "缺少认证信息",
		"error.auth_header_invalid":  "认证信息格式错误",
		"error.token_invalid":        "登录状态已失效，请重新登录",
		"error.jwt_secret_missing":   "服务端认证配置缺失",

		"error.shop_not_found":        "店铺不存在",
		"error.shop_closed":           "店铺已打烊",
		"error.shop_status_invalid":   "店铺状态无效",
		"error.menu_item_not_found":   "菜品不存在",
		"error.menu_item_unavailable": "菜品已下架",
		"error.order_item_invalid":    "订单项无效",
		"error.order_total_invalid":   "订单金额校验失败",
		"error.order_not_found":       "订单不存在",
		"error.order_status_invalid":  "订单状态不允许该操作",

		"error.payment_method_invalid":         "支付方式无效",
		"error.payment_already_captured":       "该订单已完成支付",
		"error.payment_not_captured":           "支付尚未完成",
		"error.payment_gateway_request_failed": "支付网关请求失败",

		"error.sub_order_not_found":     "子订单不存在",
		"error.assignment_not_found":    "配送任务不存在",
		"error.assignment_conflict":     "该配送任务已被其他骑手接单",
		"error.assignment_not_offered":  "该配送任务未向你广播",
		"error.courier_busy":            "当前配送任务已满，暂不能接单",
		"error.courier_off_shift":       "骑手未在班",
		"error.courier_position_missing": "请先上报位置",
		"error.not_assigned_courier":    "你不是该配送任务的骑手",
		"error.not_shop_owner":          "你不是该店铺的店主",
		"error.no_courier_available":    "附近暂无可用骑手",

		"error.otp_rate_limited":       "验证码发送过于频繁，请 %d 秒后再试",
		"error.otp_invalid":            "验证码错误",
		"error.otp_expired":            "验证码已过期，请重新发送",
		"error.otp_not_issued":         "请先发送收货验证码",
		"error.otp_email_send_failed":  "验证码邮件发送失败",

		"order.status.pending":          "待接单",
		"order.status.preparing":        "备餐中",
		"order.status.out_for_delivery": "配送中",
		"order.status.delivered":        "已送达",
		"order.status.canceled":         "已取消",

		"email.delivery_otp.subject": "收货验证码",
		"email.delivery_otp.body":    "您的收货验证码是：%s\n\n请在骑手送达时出示，验证码 5 分钟内有效，请勿泄露。",
		"email.order_status.subject": "订单状态更新：%s",
		"email.order_status.body":    "您的订单 %s 当前状态为：%s，金额 %s 元。",
	},
	constants.LocaleZhTW: {
		"error.invalid_request":        "請求參數有誤",
		"error.unauthorized":           "請先登入",
		"error.forbidden":              "沒有操作權限",
		"error.not_found":              "資源不存在",
		"error.internal_error":         "伺服器內部錯誤",
		"error.rate_limit_exceeded":    "請求過於頻繁，請稍後再試",
		"error.rate_limit_unavailable": "限流服務不可用",
		"error.user_id_invalid":        "用戶標識無效",
		"error.user_id_type_invalid":   "用戶標識類型錯誤",
		"error.position_invalid":       "位置座標無效",

		"error.auth_header_missing":  "缺少認證資訊",
		"error.auth_header_invalid":  "認證資訊格式錯誤",
		"error.token_invalid":        "登入狀態已失效，請重新登入",
		"error.jwt_secret_missing":   "服務端認證配置缺失",

		"error.shop_not_found":        "店鋪不存在",
		"error.shop_closed":           "店鋪已打烊",
		"error.shop_status_invalid":   "店鋪狀態無效",
		"error.menu_item_not_found":   "菜品不存在",
		"error.menu_item_unavailable": "菜品已下架",
		"error.order_item_invalid":    "訂單項無效",
		"error.order_total_invalid":   "訂單金額校驗失敗",
		"error.order_not_found":       "訂單不存在",
		"error.order_status_invalid":  "訂單狀態不允許該操作",

		"error.payment_method_invalid":         "支付方式無效",
		"error.payment_already_captured":       "該訂單已完成支付",
		"error.payment_not_captured":           "支付尚未完成",
		"error.payment_gateway_request_failed": "支付閘道請求失敗",

		"error.sub_order_not_found":     "子訂單不存在",
		"error.assignment_not_found":    "配送任務不存在",
		"error.assignment_conflict":     "該配送任務已被其他騎手接單",
		"error.assignment_not_offered":  "該配送任務未向你廣播",
		"error.courier_busy":            "當前配送任務已滿，暫不能接單",
		"error.courier_off_shift":       "騎手未在班",
		"error.courier_position_missing": "請先上報位置",
		"error.not_assigned_courier":    "你不是該配送任務的騎手",
		"error.not_shop_owner":          "你不是該店鋪的店主",
		"error.no_courier_available":    "附近暫無可用騎手",

		"error.otp_rate_limited":       "驗證碼發送過於頻繁，請 %d 秒後再試",
		"error.otp_invalid":            "驗證碼錯誤",
		"error.otp_expired":            "驗證碼已過期，請重新發送",
		"error.otp_not_issued":         "請先發送收貨驗證碼",
		"error.otp_email_send_failed":  "驗證碼郵件發送失敗",

		"order.status.pending":          "待接單",
		"order.status.preparing":        "備餐中",
		"order.status.out_for_delivery": "配送中",
		"order.status.delivered":        "已送達",
		"order.status.canceled":         "已取消",

		"email.delivery_otp.subject": "收貨驗證碼",
		"email.delivery_otp.body":    "您的收貨驗證碼是：%s\n\n請在騎手送達時出示，驗證碼 5 分鐘內有效，請勿洩露。",
		"email.order_status.subject": "訂單狀態更新：%s",
		"email.order_status.body":    "您的訂單 %s 當前狀態為：%s，金額 %s 元。",
	},
	constants.LocaleEnUS: {
		"error.invalid_request":        "invalid request",
		"error.unauthorized":           "login required",
		"error.forbidden":              "permission denied",
		"error.not_found":              "resource not found",
		"error.internal_error":         "internal server error",
		"error.rate_limit_exceeded":    "too many requests, please retry later",
		"error.rate_limit_unavailable": "rate limiter unavailable",
		"error.user_id_invalid":        "invalid user id",
		"error.user_id_type_invalid":   "invalid user id type",
		"error.position_invalid":       "invalid position coordinates",

		"error.auth_header_missing":  "missing authorization header",
		"error.auth_header_invalid":  "malformed authorization header",
		"error.token_invalid":        "session expired, please login again",
		"error.jwt_secret_missing":   "server auth config missing",

		"error.shop_not_found":        "shop not found",
		"error.shop_closed":           "shop is closed",
		"error.shop_status_invalid":   "invalid shop status",
		"error.menu_item_not_found":   "menu item not found",
		"error.menu_item_unavailable": "menu item unavailable",
		"error.order_item_invalid":    "invalid order item",
		"error.order_total_invalid":   "order total mismatch",
		"error.order_not_found":       "order not found",
		"error.order_status_invalid":  "operation not allowed in current order status",

		"error.payment_method_invalid":         "invalid payment method",
		"error.payment_already_captured":       "payment already captured",
		"error.payment_not_captured":           "payment not captured yet",
		"error.payment_gateway_request_failed": "payment gateway request failed",

		"error.sub_order_not_found":     "sub-order not found",
		"error.assignment_not_found":    "delivery assignment not found",
		"error.assignment_conflict":     "assignment already claimed by another courier",
		"error.assignment_not_offered":  "assignment was not offered to you",
		"error.courier_busy":            "too many active deliveries, cannot accept more",
		"error.courier_off_shift":       "courier is off shift",
		"error.courier_position_missing": "please report your position first",
		"error.not_assigned_courier":    "you are not the courier of this assignment",
		"error.not_shop_owner":          "you are not the owner of this shop",
		"error.no_courier_available":    "no courier available nearby",

		"error.otp_rate_limited":       "OTP sent too frequently, retry in %d seconds",
		"error.otp_invalid":            "OTP is incorrect",
		"error.otp_expired":            "OTP expired, request a new one",
		"error.otp_not_issued":         "please request the delivery OTP first",
		"error.otp_email_send_failed":  "failed to send OTP email",

		"order.status.pending":          "pending",
		"order.status.preparing":        "preparing",
		"order.status.out_for_delivery": "out for delivery",
		"order.status.delivered":        "delivered",
		"order.status.canceled":         "canceled",

		"email.delivery_otp.subject": "Your delivery verification code",
		"email.delivery_otp.body":    "Your delivery verification code is: %s\n\nShow it to the courier on arrival. It expires in 5 minutes. Do not share it.",
		"email.order_status.subject": "Order status update: %s",
		"email.order_status.body":    "Your order %s is now %s, total %s.",
	},
}
