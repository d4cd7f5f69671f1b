package service

import (
	"context"
	"time"

	"github.com/waimai-next/internal/cache"
	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/logger"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/realtime"
	"github.com/waimai-next/internal/repository"
)

// CourierService 骑手服务：位置上报与上下班
type CourierService struct {
	orderRepo      repository.OrderRepository
	assignmentRepo repository.AssignmentRepository
	userRepo       repository.UserRepository
	hub            *realtime.Hub
}

// NewCourierService 创建骑手服务
func NewCourierService(
	orderRepo repository.OrderRepository,
	assignmentRepo repository.AssignmentRepository,
	userRepo repository.UserRepository,
	hub *realtime.Hub,
) *CourierService {
	return &CourierService{
		orderRepo:      orderRepo,
		assignmentRepo: assignmentRepo,
		userRepo:       userRepo,
		hub:            hub,
	}
}

// UpdatePosition 骑手位置上报：写库、刷新地理索引、转发给配送中的顾客
func (s *CourierService) UpdatePosition(ctx context.Context, courierID uint, lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidPosition
	}
	courier, err := s.userRepo.GetByID(courierID)
	if err != nil {
		return err
	}
	if courier == nil || courier.Role != constants.RoleCourier {
		return ErrNotAssignedCourier
	}

	now := time.Now()
	if err := s.userRepo.UpdatePosition(courierID, lat, lon, now); err != nil {
		return err
	}
	if err := cache.CourierGeoAdd(ctx, courierID, lat, lon); err != nil {
		logger.Warnw("courier_geo_add_failed", "courier_id", courierID, "error", err)
	}

	s.forwardPosition(courierID, lat, lon)
	return nil
}

// forwardPosition 向当前配送单的顾客转发骑手位置
func (s *CourierService) forwardPosition(courierID uint, lat, lon float64) {
	if s.hub == nil {
		return
	}
	assignment, err := s.assignmentRepo.GetActiveByCourier(courierID)
	if err != nil {
		logger.Warnw("courier_active_assignment_load_failed", "courier_id", courierID, "error", err)
		return
	}
	if assignment == nil {
		return
	}
	order, err := s.orderRepo.GetByID(assignment.OrderID)
	if err != nil || order == nil {
		return
	}
	s.hub.PublishToUser(order.UserID, realtime.CourierPositionUpdateEvent(map[string]interface{}{
		"assignment_id": assignment.ID,
		"courier_id":    courierID,
		"lat":           lat,
		"lon":           lon,
	}))
}

// SetShift 骑手上下班。下班时从地理索引中摘除。
func (s *CourierService) SetShift(ctx context.Context, courierID uint, onShift bool) (*models.User, error) {
	courier, err := s.userRepo.GetByID(courierID)
	if err != nil {
		return nil, err
	}
	if courier == nil || courier.Role != constants.RoleCourier {
		return nil, ErrNotAssignedCourier
	}
	if courier.OnShift == onShift {
		return courier, nil
	}
	courier.OnShift = onShift
	if err := s.userRepo.Update(courier); err != nil {
		return nil, err
	}
	if !onShift {
		if err := cache.CourierGeoRemove(ctx, courierID); err != nil {
			logger.Warnw("courier_geo_remove_failed", "courier_id", courierID, "error", err)
		}
	}
	return courier, nil
}
