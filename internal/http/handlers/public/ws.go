package public

import (
	"net/http"
	"time"

	handlershared "github.com/waimai-next/internal/http/handlers/shared"
	"github.com/waimai-next/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	// 鉴权由 JWT 中间件完成，跨域放行
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SubscribeEvents 建立 WebSocket 连接接收实时推送
func (h *Handler) SubscribeEvents(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		handlershared.RequestLog(c).Warnw("ws_upgrade_failed", "user_id", uid, "error", err)
		return
	}

	subscriber := h.Hub.Subscribe(realtime.UserSubject(uid), conn)
	defer h.Hub.Unsubscribe(subscriber)

	// 仅消费控制帧，连接断开即退出
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
