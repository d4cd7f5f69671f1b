package router

import (
	"fmt"
	"strings"

	"github.com/waimai-next/internal/cache"
	"github.com/waimai-next/internal/config"
	"github.com/waimai-next/internal/constants"
	publichandlers "github.com/waimai-next/internal/http/handlers/public"
	"github.com/waimai-next/internal/logger"
	"github.com/waimai-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	handler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := cache.Client()
	// 验证码发送的接口级限流，服务内冷却之外的兜底
	otpSendRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:otp_send", redisPrefix),
		WindowSeconds: 60,
		MaxRequests:   3,
		MessageKey:    "error.rate_limit_exceeded",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/shops", handler.ListShops)
			public.GET("/shops/:id/menu", handler.GetShopMenu)
		}

		// 鉴权接口
		authed := apiV1.Group("")
		authed.Use(UserJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		{
			// 实时推送
			authed.GET("/ws", handler.SubscribeEvents)

			// 顾客接口
			customer := authed.Group("")
			customer.Use(RequireRole(constants.RoleCustomer))
			{
				customer.POST("/orders", handler.CreateOrder)
				customer.GET("/orders/mine", handler.ListMyOrders)
				customer.GET("/orders/:id", handler.GetOrder)
				customer.POST("/orders/:id/payment-verification", handler.VerifyPayment)
			}

			// 店主接口
			owner := authed.Group("")
			owner.Use(RequireRole(constants.RoleShopOwner))
			{
				owner.POST("/orders/:id/suborders/:shop_id/status", handler.UpdateSubOrderStatus)
				owner.POST("/orders/:id/suborders/:shop_id/rebroadcast", handler.RebroadcastSubOrder)
				owner.GET("/owner/shops/:id/suborders", handler.ListShopSubOrders)
				owner.POST("/owner/shops/:id/status", handler.SetShopStatus)
			}

			// 骑手接口
			courier := authed.Group("")
			courier.Use(RequireRole(constants.RoleCourier))
			{
				courier.GET("/assignments/open", handler.ListOpenAssignments)
				courier.POST("/assignments/:id/accept", handler.AcceptAssignment)
				courier.GET("/assignments/current", handler.GetCurrentAssignment)
				courier.POST("/deliveries/otp/send",
					RateLimitMiddleware(redisClient, otpSendRule, KeyByUserID), handler.SendDeliveryOTP)
				courier.POST("/deliveries/otp/verify", handler.VerifyDeliveryOTP)
				courier.POST("/courier/position", handler.UpdateCourierPosition)
				courier.POST("/courier/shift", handler.SetCourierShift)
			}
		}
	}

	return r
}
