package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"time"

	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/logger"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/payment/gateway"
	"github.com/waimai-next/internal/queue"
	"github.com/waimai-next/internal/realtime"
	"github.com/waimai-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssignmentBroadcaster 配送广播入口，队列未启用时同步调用
type AssignmentBroadcaster interface {
	BroadcastSubOrder(ctx context.Context, subOrderID uint) error
}

// ChargeCreator 在线支付的支付单创建接口
type ChargeCreator interface {
	Configured() bool
	CreateCharge(ctx context.Context, orderNo, amount string) (*gateway.ChargeIntent, error)
}

// OrderService 订单服务
type OrderService struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	shopRepo    repository.ShopRepository
	userRepo    repository.UserRepository
	queueClient *queue.Client
	hub         *realtime.Hub
	broadcaster AssignmentBroadcaster
	charge      ChargeCreator
}

// NewOrderService 创建订单服务
func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	shopRepo repository.ShopRepository,
	userRepo repository.UserRepository,
	queueClient *queue.Client,
	hub *realtime.Hub,
) *OrderService {
	return &OrderService{
		db:          db,
		orderRepo:   orderRepo,
		shopRepo:    shopRepo,
		userRepo:    userRepo,
		queueClient: queueClient,
		hub:         hub,
	}
}

// SetBroadcaster 注入配送广播实现
func (s *OrderService) SetBroadcaster(b AssignmentBroadcaster) {
	s.broadcaster = b
}

// SetChargeCreator 注入在线支付网关
func (s *OrderService) SetChargeCreator(c ChargeCreator) {
	s.charge = c
}

// CreateOrderItemInput 下单菜品项
type CreateOrderItemInput struct {
	MenuItemID uint `json:"menu_item_id" binding:"required"`
	Quantity   int  `json:"quantity" binding:"required"`
}

// CreateOrderInput 下单入参
type CreateOrderInput struct {
	PaymentMethod   string                 `json:"payment_method" binding:"required"`
	DeliveryAddress string                 `json:"delivery_address" binding:"required"`
	DeliveryLat     float64                `json:"delivery_lat" binding:"required"`
	DeliveryLon     float64                `json:"delivery_lon" binding:"required"`
	TotalAmount     models.Money           `json:"total_amount" binding:"required"`
	Items           []CreateOrderItemInput `json:"items" binding:"required"`
}

// CheckoutResult 下单结果，在线支付时携带收银台地址
type CheckoutResult struct {
	Order  *models.Order `json:"order"`
	PayURL string        `json:"pay_url,omitempty"`
}

// Checkout 创建订单：校验菜品与店铺，按店铺拆分子订单，事务内落库。
// 在线支付先在网关创建支付单，支付单号随订单一起落库。
func (s *OrderService) Checkout(ctx context.Context, userID uint, input CreateOrderInput) (*CheckoutResult, error) {
	if input.PaymentMethod != constants.PaymentMethodCOD && input.PaymentMethod != constants.PaymentMethodOnline {
		return nil, ErrPaymentMethodInvalid
	}
	if len(input.Items) == 0 {
		return nil, ErrInvalidOrderItem
	}

	// 同一菜品多次出现时合并数量，保持首次出现的顺序
	quantities := map[uint]int{}
	menuItemIDs := make([]uint, 0, len(input.Items))
	for _, item := range input.Items {
		if item.MenuItemID == 0 || item.Quantity <= 0 {
			return nil, ErrInvalidOrderItem
		}
		if _, seen := quantities[item.MenuItemID]; !seen {
			menuItemIDs = append(menuItemIDs, item.MenuItemID)
		}
		quantities[item.MenuItemID] += item.Quantity
	}
	menuItems, err := s.shopRepo.ListMenuItems(menuItemIDs)
	if err != nil {
		return nil, err
	}
	menuItemMap := map[uint]models.MenuItem{}
	for _, item := range menuItems {
		menuItemMap[item.ID] = item
	}
	for _, id := range menuItemIDs {
		item, ok := menuItemMap[id]
		if !ok {
			return nil, ErrMenuItemNotFound
		}
		if !item.Available {
			return nil, ErrMenuItemUnavailable
		}
	}

	// 按店铺分组
	itemsByShop := map[uint][]models.MenuItem{}
	for _, id := range menuItemIDs {
		item := menuItemMap[id]
		itemsByShop[item.ShopID] = append(itemsByShop[item.ShopID], item)
	}
	shopIDs := make([]uint, 0, len(itemsByShop))
	for shopID := range itemsByShop {
		shopIDs = append(shopIDs, shopID)
	}
	sort.Slice(shopIDs, func(i, j int) bool { return shopIDs[i] < shopIDs[j] })

	shops, err := s.shopRepo.ListByIDs(shopIDs)
	if err != nil {
		return nil, err
	}
	shopMap := map[uint]models.Shop{}
	for _, shop := range shops {
		shopMap[shop.ID] = shop
	}
	for _, shopID := range shopIDs {
		shop, ok := shopMap[shopID]
		if !ok {
			return nil, ErrShopNotFound
		}
		if shop.Status != constants.ShopStatusOpen {
			return nil, ErrShopClosed
		}
	}

	orderNo := generateOrderNo()
	grandTotal := decimal.Zero
	subOrders := make([]models.SubOrder, 0, len(shopIDs))
	for i, shopID := range shopIDs {
		shop := shopMap[shopID]
		subtotal := decimal.Zero
		items := make([]models.SubOrderItem, 0, len(itemsByShop[shopID]))
		for _, menuItem := range itemsByShop[shopID] {
			quantity := quantities[menuItem.ID]
			linePrice := menuItem.Price.Decimal.Mul(decimal.NewFromInt(int64(quantity)))
			subtotal = subtotal.Add(linePrice)
			items = append(items, models.SubOrderItem{
				MenuItemID: menuItem.ID,
				Name:       menuItem.Name,
				UnitPrice:  menuItem.Price,
				Quantity:   quantity,
				TotalPrice: models.NewMoneyFromDecimal(linePrice),
			})
		}
		grandTotal = grandTotal.Add(subtotal)
		subOrders = append(subOrders, models.SubOrder{
			SubOrderNo: buildSubOrderNo(orderNo, i),
			ShopID:     shop.ID,
			OwnerID:    shop.OwnerID,
			Status:     constants.OrderStatusPending,
			Subtotal:   models.NewMoneyFromDecimal(subtotal),
			Items:      items,
		})
	}

	// 声明总额需覆盖各店铺小计之和（可含配送费等附加项）
	if input.TotalAmount.Decimal.LessThan(grandTotal) {
		return nil, ErrOrderTotalInvalid
	}

	order := &models.Order{
		OrderNo:         orderNo,
		UserID:          userID,
		PaymentMethod:   input.PaymentMethod,
		TotalAmount:     input.TotalAmount,
		DeliveryAddress: input.DeliveryAddress,
		DeliveryLat:     input.DeliveryLat,
		DeliveryLon:     input.DeliveryLon,
	}

	// 在线支付先建支付单，落库的订单携带支付单号
	payURL := ""
	if input.PaymentMethod == constants.PaymentMethodOnline {
		if s.charge == nil || !s.charge.Configured() {
			logger.Warnw("charge_gateway_unavailable", "order_no", orderNo)
			return nil, ErrPaymentGatewayRequestFailed
		}
		intent, err := s.charge.CreateCharge(ctx, orderNo, input.TotalAmount.String())
		if err != nil {
			logger.Warnw("charge_create_failed", "order_no", orderNo, "error", err)
			return nil, ErrPaymentGatewayRequestFailed
		}
		order.ProviderRef = intent.IntentID
		payURL = intent.PayURL
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.orderRepo.WithTx(tx).Create(order, subOrders)
	}); err != nil {
		return nil, err
	}
	order.SubOrders = subOrders

	s.notifyNewOrder(order)
	return &CheckoutResult{Order: order, PayURL: payURL}, nil
}

// notifyNewOrder 推送新订单给各店主，并为顾客排队下单通知邮件
func (s *OrderService) notifyNewOrder(order *models.Order) {
	if s.hub != nil {
		notified := map[uint]bool{}
		for _, sub := range order.SubOrders {
			if notified[sub.OwnerID] {
				continue
			}
			notified[sub.OwnerID] = true
			s.hub.PublishToUser(sub.OwnerID, realtime.NewOrderEvent(map[string]interface{}{
				"order_id": order.ID,
				"order_no": order.OrderNo,
			}))
		}
	}
	if err := s.queueClient.EnqueueOrderStatusEmail(queue.OrderStatusEmailPayload{
		OrderID: order.ID,
		Status:  constants.OrderStatusPending,
	}); err != nil {
		logger.Warnw("order_status_email_enqueue_failed", "order_id", order.ID, "error", err)
	}
}

// GetOrderForCustomer 顾客视角的订单详情
func (s *OrderService) GetOrderForCustomer(userID, orderID uint) (*OrderView, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.buildOrderView(order), nil
}

// ListOrdersForCustomer 顾客订单列表
func (s *OrderService) ListOrdersForCustomer(filter repository.OrderListFilter) ([]OrderView, int64, error) {
	orders, total, err := s.orderRepo.ListByUser(filter)
	if err != nil {
		return nil, 0, err
	}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, *s.buildOrderView(&orders[i]))
	}
	return views, total, nil
}

// ListSubOrdersForShop 店铺维度的子订单列表（店主视角）
func (s *OrderService) ListSubOrdersForShop(ownerID uint, filter repository.SubOrderListFilter) ([]SubOrderView, int64, error) {
	shop, err := s.shopRepo.GetByID(filter.ShopID)
	if err != nil {
		return nil, 0, err
	}
	if shop == nil {
		return nil, 0, ErrShopNotFound
	}
	if shop.OwnerID != ownerID {
		return nil, 0, ErrNotShopOwner
	}
	subOrders, total, err := s.orderRepo.ListSubOrdersByShop(filter)
	if err != nil {
		return nil, 0, err
	}
	views := make([]SubOrderView, 0, len(subOrders))
	for i := range subOrders {
		views = append(views, *s.buildSubOrderView(&subOrders[i]))
	}
	return views, total, nil
}

// UpdateSubOrderStatus 店主推进子订单状态。
// 送达只能经收货验证码确认，不允许由店主直接设置。
func (s *OrderService) UpdateSubOrderStatus(ctx context.Context, ownerID, orderID, shopID uint, toStatus string) (*models.SubOrder, error) {
	if toStatus == constants.OrderStatusDelivered {
		return nil, ErrOrderStatusInvalid
	}
	subOrder, err := s.orderRepo.GetSubOrderByOrderAndShop(orderID, shopID)
	if err != nil {
		return nil, err
	}
	if subOrder == nil {
		return nil, ErrSubOrderNotFound
	}
	if subOrder.OwnerID != ownerID {
		return nil, ErrNotShopOwner
	}
	if !CanTransition(subOrder.Status, toStatus) {
		return nil, ErrOrderStatusInvalid
	}

	ok, err := s.orderRepo.UpdateSubOrderStatus(subOrder.ID, subOrder.Status, toStatus, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 并发更新已抢先迁移
		return nil, ErrOrderStatusInvalid
	}
	subOrder.Status = toStatus

	s.notifyStatusChange(subOrder)
	if toStatus == constants.OrderStatusOutForDelivery {
		s.triggerBroadcast(ctx, subOrder.ID)
	}
	return subOrder, nil
}

// notifyStatusChange 推送状态变更给顾客并排队通知邮件
func (s *OrderService) notifyStatusChange(subOrder *models.SubOrder) {
	order, err := s.orderRepo.GetByID(subOrder.OrderID)
	if err != nil || order == nil {
		logger.Warnw("status_change_order_load_failed", "order_id", subOrder.OrderID, "error", err)
		return
	}
	if s.hub != nil {
		s.hub.PublishToUser(order.UserID, realtime.StatusUpdateEvent(map[string]interface{}{
			"order_id":     order.ID,
			"sub_order_id": subOrder.ID,
			"shop_id":      subOrder.ShopID,
			"status":       subOrder.Status,
		}))
	}
	if err := s.queueClient.EnqueueOrderStatusEmail(queue.OrderStatusEmailPayload{
		OrderID: order.ID,
		Status:  subOrder.Status,
	}); err != nil {
		logger.Warnw("order_status_email_enqueue_failed", "order_id", order.ID, "error", err)
	}
}

// triggerBroadcast 出餐后触发配送广播，优先走队列
func (s *OrderService) triggerBroadcast(ctx context.Context, subOrderID uint) {
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueAssignmentBroadcast(queue.AssignmentBroadcastPayload{SubOrderID: subOrderID})
		if err == nil {
			return
		}
		logger.Warnw("assignment_broadcast_enqueue_failed", "sub_order_id", subOrderID, "error", err)
	}
	if s.broadcaster == nil {
		logger.Warnw("assignment_broadcast_skipped", "sub_order_id", subOrderID)
		return
	}
	if err := s.broadcaster.BroadcastSubOrder(ctx, subOrderID); err != nil {
		logger.Warnw("assignment_broadcast_failed", "sub_order_id", subOrderID, "error", err)
	}
}

// OrderView 顾客视角的订单投影
type OrderView struct {
	ID              uint           `json:"id"`
	OrderNo         string         `json:"order_no"`
	Status          string         `json:"status"`
	PaymentMethod   string         `json:"payment_method"`
	PaymentCaptured bool           `json:"payment_captured"`
	TotalAmount     models.Money   `json:"total_amount"`
	DeliveryAddress string         `json:"delivery_address"`
	CreatedAt       time.Time      `json:"created_at"`
	SubOrders       []SubOrderView `json:"sub_orders"`
}

// SubOrderView 子订单投影
type SubOrderView struct {
	ID          uint                  `json:"id"`
	SubOrderNo  string                `json:"sub_order_no"`
	ShopID      uint                  `json:"shop_id"`
	ShopName    string                `json:"shop_name,omitempty"`
	Status      string                `json:"status"`
	Subtotal    models.Money          `json:"subtotal"`
	Items       []models.SubOrderItem `json:"items"`
	Courier     *CourierBrief         `json:"courier,omitempty"`
	DeliveredAt *time.Time            `json:"delivered_at,omitempty"`
}

// CourierBrief 骑手摘要信息
type CourierBrief struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone,omitempty"`
}

func (s *OrderService) buildOrderView(order *models.Order) *OrderView {
	view := &OrderView{
		ID:              order.ID,
		OrderNo:         order.OrderNo,
		Status:          ProjectOrderStatus(order.SubOrders),
		PaymentMethod:   order.PaymentMethod,
		PaymentCaptured: order.PaymentCaptured,
		TotalAmount:     order.TotalAmount,
		DeliveryAddress: order.DeliveryAddress,
		CreatedAt:       order.CreatedAt,
		SubOrders:       make([]SubOrderView, 0, len(order.SubOrders)),
	}
	for i := range order.SubOrders {
		view.SubOrders = append(view.SubOrders, *s.buildSubOrderView(&order.SubOrders[i]))
	}
	return view
}

func (s *OrderService) buildSubOrderView(subOrder *models.SubOrder) *SubOrderView {
	view := &SubOrderView{
		ID:          subOrder.ID,
		SubOrderNo:  subOrder.SubOrderNo,
		ShopID:      subOrder.ShopID,
		Status:      subOrder.Status,
		Subtotal:    subOrder.Subtotal,
		Items:       subOrder.Items,
		DeliveredAt: subOrder.DeliveredAt,
	}
	if subOrder.Shop != nil {
		view.ShopName = subOrder.Shop.Name
	}
	if subOrder.CourierID != nil {
		if courier, err := s.userRepo.GetByID(*subOrder.CourierID); err == nil && courier != nil {
			view.Courier = &CourierBrief{
				ID:          courier.ID,
				DisplayName: courier.DisplayName,
				Phone:       courier.Phone,
			}
		}
	}
	return view
}

// generateOrderNo 生成订单号：WM + 时间戳 + 6 位随机数字
func generateOrderNo() string {
	return fmt.Sprintf("WM%s%s", time.Now().Format("20060102150405"), randNumeric(6))
}

// buildSubOrderNo 子订单号：父订单号 + 两位序号
func buildSubOrderNo(orderNo string, index int) string {
	return fmt.Sprintf("%s-%02d", orderNo, index+1)
}

func randNumeric(length int) string {
	const digits = "0123456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		// 退化为时间戳尾数
		return fmt.Sprintf("%0*d", length, time.Now().UnixNano()%1000000)
	}
	for i := range buf {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf)
}
