package constants

// 用户角色常量
const (
	RoleCustomer  = "customer"
	RoleShopOwner = "shop_owner"
	RoleCourier   = "courier"
)

// 订单状态常量
const (
	OrderStatusPending        = "pending"
	OrderStatusPreparing      = "preparing"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCanceled       = "canceled"
)

// 配送任务状态常量
const (
	AssignmentStatusBroadcasted = "broadcasted"
	AssignmentStatusAssigned    = "assigned"
	AssignmentStatusCompleted   = "completed"
)

// 支付方式常量
const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
)

// 店铺状态常量
const (
	ShopStatusOpen   = "open"
	ShopStatusClosed = "closed"
)

// 推送事件类型常量
const (
	EventNewOrder              = "newOrder"
	EventNewAssignment         = "newAssignment"
	EventStatusUpdate          = "statusUpdate"
	EventCourierPositionUpdate = "courierPositionUpdate"
)

// 骑手调度常量
const (
	DispatchRadiusKm          = 5.0
	DispatchMaxActiveOrders   = 1
	CourierPositionTTLMinutes = 15
)

// 收货验证码常量
const (
	OTPLength         = 6
	OTPExpireMinutes  = 5
	OTPResendMinFresh = 4 // 剩余有效期超过该分钟数时拒绝重发
)

// 队列常量
const (
	QueueDefault            = "default"
	TaskOrderStatusEmail    = "order:status_email"
	TaskDeliveryOTPEmail    = "delivery:otp_email"
	TaskAssignmentBroadcast = "assignment:broadcast"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "wm"
	GeoKeyCouriers     = "geo:couriers"
)

// 站点语言常量
const (
	LocaleZhCN = "zh-CN"
	LocaleZhTW = "zh-TW"
	LocaleEnUS = "en-US"
)
