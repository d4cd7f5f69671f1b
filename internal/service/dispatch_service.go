package service

import (
	"context"
	"time"

	"github.com/waimai-next/internal/cache"
	"github.com/waimai-next/internal/config"
	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/logger"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/realtime"
	"github.com/waimai-next/internal/repository"

	"gorm.io/gorm"
)

// DispatchService 配送调度服务：广播、抢单、改派
type DispatchService struct {
	db              *gorm.DB
	orderRepo       repository.OrderRepository
	assignmentRepo  repository.AssignmentRepository
	userRepo        repository.UserRepository
	hub             *realtime.Hub
	radiusKm        float64
	maxActiveOrders int
	positionTTL     time.Duration
}

// NewDispatchService 创建调度服务
func NewDispatchService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	assignmentRepo repository.AssignmentRepository,
	userRepo repository.UserRepository,
	hub *realtime.Hub,
	cfg config.DispatchConfig,
) *DispatchService {
	radiusKm := cfg.RadiusKm
	if radiusKm <= 0 {
		radiusKm = constants.DispatchRadiusKm
	}
	maxActive := cfg.MaxActiveOrders
	if maxActive <= 0 {
		maxActive = constants.DispatchMaxActiveOrders
	}
	ttlMinutes := cfg.PositionTTLMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = constants.CourierPositionTTLMinutes
	}
	return &DispatchService{
		db:              db,
		orderRepo:       orderRepo,
		assignmentRepo:  assignmentRepo,
		userRepo:        userRepo,
		hub:             hub,
		radiusKm:        radiusKm,
		maxActiveOrders: maxActive,
		positionTTL:     time.Duration(ttlMinutes) * time.Minute,
	}
}

// BroadcastSubOrder 出餐后以收货地址为圆心广播配送任务。
// 无候选骑手也会落库，等待店主改派重试。
func (s *DispatchService) BroadcastSubOrder(ctx context.Context, subOrderID uint) error {
	subOrder, err := s.orderRepo.GetSubOrderByID(subOrderID)
	if err != nil {
		return err
	}
	if subOrder == nil {
		return ErrSubOrderNotFound
	}
	if subOrder.Status != constants.OrderStatusOutForDelivery {
		return ErrOrderStatusInvalid
	}
	if subOrder.Shop == nil {
		return ErrShopNotFound
	}
	order, err := s.orderRepo.GetByID(subOrder.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}

	existing, err := s.assignmentRepo.GetBySubOrderID(subOrder.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status != constants.AssignmentStatusBroadcasted {
		// 已有骑手接单，无需重复广播
		return nil
	}

	candidateIDs, err := s.findCandidates(ctx, order.DeliveryLat, order.DeliveryLon)
	if err != nil {
		return err
	}
	if len(candidateIDs) == 0 {
		logger.Infow("dispatch_no_candidates",
			"sub_order_id", subOrder.ID,
			"shop_id", subOrder.ShopID,
			"radius_km", s.radiusKm)
	}

	broadcastTo := make(models.StringArray, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		broadcastTo = append(broadcastTo, repository.FormatCourierID(id))
	}

	var assignment *models.Assignment
	if existing != nil {
		if err := s.assignmentRepo.UpdateBroadcastTo(existing.ID, broadcastTo); err != nil {
			return err
		}
		existing.BroadcastTo = broadcastTo
		assignment = existing
	} else {
		assignment = &models.Assignment{
			OrderID:     subOrder.OrderID,
			ShopID:      subOrder.ShopID,
			SubOrderID:  subOrder.ID,
			Status:      constants.AssignmentStatusBroadcasted,
			BroadcastTo: broadcastTo,
		}
		if err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.assignmentRepo.WithTx(tx).Create(assignment); err != nil {
				return err
			}
			return s.orderRepo.WithTx(tx).LinkSubOrderAssignment(subOrder.ID, assignment.ID)
		}); err != nil {
			return err
		}
	}

	s.notifyCandidates(candidateIDs, assignment, subOrder, order)
	return nil
}

// Rebroadcast 店主手动改派：刷新广播名单重新推送
func (s *DispatchService) Rebroadcast(ctx context.Context, ownerID, orderID, shopID uint) error {
	subOrder, err := s.orderRepo.GetSubOrderByOrderAndShop(orderID, shopID)
	if err != nil {
		return err
	}
	if subOrder == nil {
		return ErrSubOrderNotFound
	}
	if subOrder.OwnerID != ownerID {
		return ErrNotShopOwner
	}
	if subOrder.Status != constants.OrderStatusOutForDelivery {
		return ErrOrderStatusInvalid
	}
	existing, err := s.assignmentRepo.GetBySubOrderID(subOrder.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == constants.AssignmentStatusAssigned {
		return ErrAssignmentConflict
	}
	return s.BroadcastSubOrder(ctx, subOrder.ID)
}

// findCandidates 查找半径内在班且位置新鲜的空闲骑手。
// 优先使用 Redis 地理索引，未启用时回退全量扫描。
func (s *DispatchService) findCandidates(ctx context.Context, lat, lon float64) ([]uint, error) {
	now := time.Now()
	var candidates []models.User

	if cache.Enabled() {
		ids, err := cache.CourierGeoSearch(ctx, lat, lon, s.radiusKm)
		if err != nil {
			logger.Warnw("courier_geo_search_failed", "error", err)
		} else {
			users, err := s.userRepo.ListByIDs(ids)
			if err != nil {
				return nil, err
			}
			for _, user := range users {
				if user.Role == constants.RoleCourier && user.OnShift && user.HasFreshPosition(s.positionTTL, now) {
					candidates = append(candidates, user)
				}
			}
		}
	}

	if candidates == nil {
		locatedAfter := now.Add(-s.positionTTL)
		couriers, err := s.userRepo.ListCouriers(repository.CourierFilter{
			OnShiftOnly:  true,
			LocatedAfter: &locatedAfter,
		})
		if err != nil {
			return nil, err
		}
		for _, courier := range couriers {
			if courier.Lat == nil || courier.Lon == nil {
				continue
			}
			if haversineKm(lat, lon, *courier.Lat, *courier.Lon) <= s.radiusKm {
				candidates = append(candidates, courier)
			}
		}
	}

	candidateIDs := make([]uint, 0, len(candidates))
	for _, courier := range candidates {
		candidateIDs = append(candidateIDs, courier.ID)
	}

	// 排除已被配送任务占用的骑手
	heldIDs, err := s.assignmentRepo.ListHeldCourierIDs(candidateIDs)
	if err != nil {
		return nil, err
	}
	if len(heldIDs) == 0 {
		return candidateIDs, nil
	}
	held := map[uint]bool{}
	for _, id := range heldIDs {
		held[id] = true
	}
	free := candidateIDs[:0]
	for _, id := range candidateIDs {
		if !held[id] {
			free = append(free, id)
		}
	}
	return free, nil
}

// newAssignmentPayload 组装广播事件内容。
// 骑手接推送后无需回查即可决定是否抢单，菜品与金额一并带出。
func newAssignmentPayload(assignment *models.Assignment, subOrder *models.SubOrder, order *models.Order) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(subOrder.Items))
	for _, item := range subOrder.Items {
		items = append(items, map[string]interface{}{
			"name":     item.Name,
			"quantity": item.Quantity,
		})
	}
	payload := map[string]interface{}{
		"assignment_id":    assignment.ID,
		"sub_order_no":     subOrder.SubOrderNo,
		"shop_id":          subOrder.ShopID,
		"subtotal":         subOrder.Subtotal,
		"items":            items,
		"delivery_address": order.DeliveryAddress,
		"delivery_lat":     order.DeliveryLat,
		"delivery_lon":     order.DeliveryLon,
	}
	if subOrder.Shop != nil {
		payload["shop_name"] = subOrder.Shop.Name
		payload["shop_address"] = subOrder.Shop.Address
	}
	return payload
}

// notifyCandidates 向候选骑手推送新配送任务
func (s *DispatchService) notifyCandidates(candidateIDs []uint, assignment *models.Assignment, subOrder *models.SubOrder, order *models.Order) {
	if s.hub == nil {
		return
	}
	payload := newAssignmentPayload(assignment, subOrder, order)
	for _, courierID := range candidateIDs {
		s.hub.PublishToUser(courierID, realtime.NewAssignmentEvent(payload))
	}
}

// AcceptAssignment 骑手抢单。
// 条件更新保证并发下只有一名骑手成功，其余返回冲突。
func (s *DispatchService) AcceptAssignment(ctx context.Context, courierID, assignmentID uint) (*models.Assignment, error) {
	courier, err := s.userRepo.GetByID(courierID)
	if err != nil {
		return nil, err
	}
	if courier == nil || courier.Role != constants.RoleCourier {
		return nil, ErrAssignmentNotFound
	}
	if !courier.OnShift {
		return nil, ErrCourierOffShift
	}

	held, err := s.assignmentRepo.CountHeldByCourier(courierID)
	if err != nil {
		return nil, err
	}
	if held >= int64(s.maxActiveOrders) {
		return nil, ErrCourierBusy
	}

	assignment, err := s.assignmentRepo.GetByID(assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	if assignment.Status != constants.AssignmentStatusBroadcasted {
		return nil, ErrAssignmentConflict
	}
	if !repository.BroadcastContains(assignment.BroadcastTo, courierID) {
		return nil, ErrAssignmentNotOffered
	}

	claimedAt := time.Now()
	ok, err := s.assignmentRepo.Claim(assignment.ID, courierID, claimedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAssignmentConflict
	}

	subOrder, err := s.orderRepo.GetSubOrderByID(assignment.SubOrderID)
	if err == nil && subOrder == nil {
		err = ErrSubOrderNotFound
	}
	if err != nil {
		// 子订单不可用时回滚抢单，任务继续广播
		if releaseErr := s.assignmentRepo.Release(assignment.ID); releaseErr != nil {
			logger.Errorw("assignment_release_failed", "assignment_id", assignment.ID, "error", releaseErr)
		}
		return nil, err
	}
	if err := s.orderRepo.BindSubOrderCourier(subOrder.ID, courierID); err != nil {
		if releaseErr := s.assignmentRepo.Release(assignment.ID); releaseErr != nil {
			logger.Errorw("assignment_release_failed", "assignment_id", assignment.ID, "error", releaseErr)
		}
		return nil, err
	}

	assignment.CourierID = &courierID
	assignment.Status = constants.AssignmentStatusAssigned
	assignment.ClaimedAt = &claimedAt
	assignment.SubOrder = subOrder

	s.notifyCourierAssigned(assignment, courier)
	return assignment, nil
}

// notifyCourierAssigned 推送接单结果给顾客
func (s *DispatchService) notifyCourierAssigned(assignment *models.Assignment, courier *models.User) {
	if s.hub == nil {
		return
	}
	order, err := s.orderRepo.GetByID(assignment.OrderID)
	if err != nil || order == nil {
		logger.Warnw("assignment_order_load_failed", "order_id", assignment.OrderID, "error", err)
		return
	}
	s.hub.PublishToUser(order.UserID, realtime.StatusUpdateEvent(map[string]interface{}{
		"order_id":        order.ID,
		"sub_order_id":    assignment.SubOrderID,
		"courier_id":      courier.ID,
		"courier_name":    courier.DisplayName,
		"courier_claimed": true,
	}))
}

// ListOpenAssignments 骑手可抢的广播中任务
func (s *DispatchService) ListOpenAssignments(courierID uint) ([]AssignmentView, error) {
	assignments, err := s.assignmentRepo.ListBroadcastedForCourier(courierID)
	if err != nil {
		return nil, err
	}
	views := make([]AssignmentView, 0, len(assignments))
	for i := range assignments {
		view, err := s.buildAssignmentView(&assignments[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// CurrentAssignment 骑手当前进行中的配送任务
func (s *DispatchService) CurrentAssignment(courierID uint) (*AssignmentView, error) {
	assignment, err := s.assignmentRepo.GetActiveByCourier(courierID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	return s.buildAssignmentView(assignment)
}

// AssignmentView 骑手视角的配送任务投影
type AssignmentView struct {
	ID              uint         `json:"id"`
	Status          string       `json:"status"`
	SubOrderID      uint         `json:"sub_order_id"`
	SubOrderNo      string       `json:"sub_order_no"`
	ShopID          uint         `json:"shop_id"`
	ShopName        string       `json:"shop_name,omitempty"`
	ShopAddress     string       `json:"shop_address,omitempty"`
	ShopLat         float64      `json:"shop_lat,omitempty"`
	ShopLon         float64      `json:"shop_lon,omitempty"`
	DeliveryAddress string       `json:"delivery_address"`
	DeliveryLat     float64      `json:"delivery_lat"`
	DeliveryLon     float64      `json:"delivery_lon"`
	PaymentMethod   string       `json:"payment_method"`
	CollectAmount   models.Money `json:"collect_amount"`
	ItemCount       int          `json:"item_count"`
	ClaimedAt       *time.Time   `json:"claimed_at,omitempty"`
}

func (s *DispatchService) buildAssignmentView(assignment *models.Assignment) (*AssignmentView, error) {
	view := &AssignmentView{
		ID:         assignment.ID,
		Status:     assignment.Status,
		SubOrderID: assignment.SubOrderID,
		ShopID:     assignment.ShopID,
		ClaimedAt:  assignment.ClaimedAt,
	}
	subOrder := assignment.SubOrder
	if subOrder == nil {
		loaded, err := s.orderRepo.GetSubOrderByID(assignment.SubOrderID)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			return nil, ErrSubOrderNotFound
		}
		subOrder = loaded
	}
	view.SubOrderNo = subOrder.SubOrderNo
	view.ItemCount = len(subOrder.Items)
	if subOrder.Shop != nil {
		view.ShopName = subOrder.Shop.Name
		view.ShopAddress = subOrder.Shop.Address
		view.ShopLat = subOrder.Shop.Lat
		view.ShopLon = subOrder.Shop.Lon
	}

	order, err := s.orderRepo.GetByID(assignment.OrderID)
	if err != nil {
		return nil, err
	}
	if order != nil {
		view.DeliveryAddress = order.DeliveryAddress
		view.DeliveryLat = order.DeliveryLat
		view.DeliveryLon = order.DeliveryLon
		view.PaymentMethod = order.PaymentMethod
		// 货到付款按子订单小计代收
		if order.PaymentMethod == constants.PaymentMethodCOD && !order.PaymentCaptured {
			view.CollectAmount = subOrder.Subtotal
		}
	}
	return view, nil
}
