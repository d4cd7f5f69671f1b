package public

import (
	"strconv"

	handlershared "github.com/waimai-next/internal/http/handlers/shared"
	"github.com/waimai-next/internal/http/response"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/repository"
	"github.com/waimai-next/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderItemRequest 订单项请求
type OrderItemRequest struct {
	MenuItemID uint `json:"menu_item_id" binding:"required"`
	Quantity   int  `json:"quantity" binding:"required"`
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	PaymentMethod   string             `json:"payment_method" binding:"required"`
	DeliveryAddress string             `json:"delivery_address" binding:"required"`
	DeliveryLat     float64            `json:"delivery_lat" binding:"required"`
	DeliveryLon     float64            `json:"delivery_lon" binding:"required"`
	TotalAmount     models.Money       `json:"total_amount" binding:"required"`
	Items           []OrderItemRequest `json:"items" binding:"required"`
}

// CreateOrder 顾客下单
func (h *Handler) CreateOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_request", err)
		return
	}

	items := make([]service.CreateOrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CreateOrderItemInput{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
		})
	}

	result, err := h.OrderService.Checkout(c.Request.Context(), uid, service.CreateOrderInput{
		PaymentMethod:   req.PaymentMethod,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryLat:     req.DeliveryLat,
		DeliveryLon:     req.DeliveryLon,
		TotalAmount:     req.TotalAmount,
		Items:           items,
	})
	if err != nil {
		respondWithMappedError(c, err, orderCreateErrorRules, response.CodeInternal, "error.internal_error")
		return
	}

	response.Success(c, result)
}

// ListMyOrders 顾客订单列表
func (h *Handler) ListMyOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	views, total, err := h.OrderService.ListOrdersForCustomer(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		OrderNo:  c.Query("order_no"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal_error", err)
		return
	}

	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, views, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// GetOrder 顾客订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	view, err := h.OrderService.GetOrderForCustomer(uid, orderID)
	if err != nil {
		respondWithMappedError(c, err, orderQueryErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, view)
}

// UpdateSubOrderStatusRequest 子订单状态更新请求
type UpdateSubOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateSubOrderStatus 店主推进子订单状态
func (h *Handler) UpdateSubOrderStatus(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	shopID, ok := parseUintParam(c, "shop_id")
	if !ok {
		return
	}

	var req UpdateSubOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_request", err)
		return
	}

	subOrder, err := h.OrderService.UpdateSubOrderStatus(c.Request.Context(), uid, orderID, shopID, req.Status)
	if err != nil {
		respondWithMappedError(c, err, subOrderStatusErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, subOrder)
}

// RebroadcastSubOrder 店主手动改派配送
func (h *Handler) RebroadcastSubOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	shopID, ok := parseUintParam(c, "shop_id")
	if !ok {
		return
	}

	if err := h.DispatchService.Rebroadcast(c.Request.Context(), uid, orderID, shopID); err != nil {
		rules := concatMappedHandlerErrors(subOrderStatusErrorRules, rebroadcastErrorRules)
		respondWithMappedError(c, err, rules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, nil)
}

// ListShopSubOrders 店主查看店铺子订单
func (h *Handler) ListShopSubOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	shopID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	views, total, err := h.OrderService.ListSubOrdersForShop(uid, repository.SubOrderListFilter{
		Page:     page,
		PageSize: pageSize,
		ShopID:   shopID,
		Status:   c.Query("status"),
	})
	if err != nil {
		respondWithMappedError(c, err, subOrderStatusErrorRules, response.CodeInternal, "error.internal_error")
		return
	}

	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, views, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}
