package provider

import (
	"github.com/waimai-next/internal/cache"
	"github.com/waimai-next/internal/config"
	"github.com/waimai-next/internal/logger"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/payment/gateway"
	"github.com/waimai-next/internal/queue"
	"github.com/waimai-next/internal/realtime"
	"github.com/waimai-next/internal/repository"
	"github.com/waimai-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Hub         *realtime.Hub

	// Repositories
	UserRepo       repository.UserRepository
	ShopRepo       repository.ShopRepository
	OrderRepo      repository.OrderRepository
	AssignmentRepo repository.AssignmentRepository

	// Services
	EmailService    *service.EmailService
	ShopService     *service.ShopService
	OrderService    *service.OrderService
	PaymentService  *service.PaymentService
	DispatchService *service.DispatchService
	DeliveryService *service.DeliveryService
	CourierService  *service.CourierService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Hub:         realtime.NewHub(),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.ShopRepo = repository.NewShopRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.AssignmentRepo = repository.NewAssignmentRepository(db)
}

func (c *Container) initServices() {
	db := models.DB

	chargeGateway := gateway.NewClient(c.Config.Payment)

	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.ShopService = service.NewShopService(c.ShopRepo)
	c.OrderService = service.NewOrderService(db, c.OrderRepo, c.ShopRepo, c.UserRepo, c.QueueClient, c.Hub)
	c.PaymentService = service.NewPaymentService(c.OrderRepo, chargeGateway, c.Hub)
	c.DispatchService = service.NewDispatchService(db, c.OrderRepo, c.AssignmentRepo, c.UserRepo, c.Hub, c.Config.Dispatch)
	c.DeliveryService = service.NewDeliveryService(db, c.OrderRepo, c.AssignmentRepo, c.UserRepo, c.QueueClient, c.EmailService, c.Hub, c.Config.Delivery)
	c.CourierService = service.NewCourierService(c.OrderRepo, c.AssignmentRepo, c.UserRepo, c.Hub)

	// 队列未启用时由订单服务同步触发广播
	c.OrderService.SetBroadcaster(c.DispatchService)
	// 在线支付在下单时创建支付单
	c.OrderService.SetChargeCreator(chargeGateway)
}
