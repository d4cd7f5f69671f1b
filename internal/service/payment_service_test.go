package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/payment/gateway"
	"github.com/waimai-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeChargeQuerier struct {
	configured bool
	status     *gateway.ChargeStatus
	err        error
	queries    int
}

func (f *fakeChargeQuerier) Configured() bool {
	return f.configured
}

func (f *fakeChargeQuerier) QueryCharge(ctx context.Context, orderNo string) (*gateway.ChargeStatus, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func setupPaymentTest(t *testing.T, charge ChargeQuerier, method string) (*PaymentService, *gorm.DB, models.Order, models.User) {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Shop{}, &models.Order{}, &models.SubOrder{}, &models.SubOrderItem{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	customer := models.User{Email: "customer@payment.local", Role: constants.RoleCustomer}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	order := models.Order{
		OrderNo:         fmt.Sprintf("WM%d", time.Now().UnixNano()),
		UserID:          customer.ID,
		PaymentMethod:   method,
		TotalAmount:     models.NewMoneyFromDecimal(decimal.NewFromInt(88)),
		DeliveryAddress: "学院路 30 号",
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	svc := NewPaymentService(repository.NewOrderRepository(db), charge, nil)
	return svc, db, order, customer
}

func TestVerifyPaymentCapturesOnce(t *testing.T) {
	charge := &fakeChargeQuerier{
		configured: true,
		status:     &gateway.ChargeStatus{TradeNo: "T20260901", TradeStatus: gateway.TradeStatusSuccess},
	}
	svc, db, order, customer := setupPaymentTest(t, charge, constants.PaymentMethodOnline)
	ctx := context.Background()

	captured, err := svc.VerifyPayment(ctx, customer.ID, order.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !captured.PaymentCaptured || captured.ProviderRef != "T20260901" {
		t.Fatalf("order not captured: %+v", captured)
	}

	var stored models.Order
	if err := db.First(&stored, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if !stored.PaymentCaptured || stored.ProviderRef != "T20260901" || stored.CapturedAt == nil {
		t.Fatalf("stored order not captured: %+v", stored)
	}

	// 重复核验返回冲突，不再查网关
	queriesBefore := charge.queries
	if _, err := svc.VerifyPayment(ctx, customer.ID, order.ID); err != ErrPaymentAlreadyCaptured {
		t.Fatalf("expected ErrPaymentAlreadyCaptured, got %v", err)
	}
	if charge.queries != queriesBefore {
		t.Fatalf("captured order should not be re-queried")
	}
}

func TestVerifyPaymentPendingAtGateway(t *testing.T) {
	charge := &fakeChargeQuerier{
		configured: true,
		status:     &gateway.ChargeStatus{TradeStatus: gateway.TradeStatusPending},
	}
	svc, db, order, customer := setupPaymentTest(t, charge, constants.PaymentMethodOnline)

	if _, err := svc.VerifyPayment(context.Background(), customer.ID, order.ID); err != ErrPaymentNotCaptured {
		t.Fatalf("expected ErrPaymentNotCaptured, got %v", err)
	}
	var stored models.Order
	if err := db.First(&stored, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if stored.PaymentCaptured {
		t.Fatalf("pending charge must not mark capture")
	}
}

func TestVerifyPaymentGuards(t *testing.T) {
	charge := &fakeChargeQuerier{configured: true, status: &gateway.ChargeStatus{TradeStatus: gateway.TradeStatusSuccess}}
	svc, _, order, customer := setupPaymentTest(t, charge, constants.PaymentMethodCOD)
	ctx := context.Background()

	// 货到付款订单不支持在线核验
	if _, err := svc.VerifyPayment(ctx, customer.ID, order.ID); err != ErrPaymentMethodInvalid {
		t.Fatalf("expected ErrPaymentMethodInvalid, got %v", err)
	}
	// 他人订单不可见
	if _, err := svc.VerifyPayment(ctx, customer.ID+1, order.ID); err != ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestVerifyPaymentGatewayFailures(t *testing.T) {
	charge := &fakeChargeQuerier{configured: true, err: gateway.ErrRequestFailed}
	svc, _, order, customer := setupPaymentTest(t, charge, constants.PaymentMethodOnline)
	ctx := context.Background()

	if _, err := svc.VerifyPayment(ctx, customer.ID, order.ID); err != ErrPaymentGatewayRequestFailed {
		t.Fatalf("expected ErrPaymentGatewayRequestFailed on query error, got %v", err)
	}

	// 网关未配置
	unconfigured, _, order2, customer2 := setupPaymentTest(t, &fakeChargeQuerier{}, constants.PaymentMethodOnline)
	if _, err := unconfigured.VerifyPayment(ctx, customer2.ID, order2.ID); err != ErrPaymentGatewayRequestFailed {
		t.Fatalf("expected ErrPaymentGatewayRequestFailed when unconfigured, got %v", err)
	}
}
