package public

import "github.com/waimai-next/internal/provider"

// Handler 对外 API 处理器入口
// 说明：顾客、店主、骑手三类角色共用，按路由分组鉴权。
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
