package realtime

import (
	"encoding/json"
	"sync"

	"github.com/waimai-next/internal/logger"

	"github.com/gorilla/websocket"
)

// Hub 在线连接管理，按主题分发事件，尽力而为不保证送达
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]struct{}
}

// Subscriber 单个 WebSocket 连接的订阅者
type Subscriber struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	subject string
}

// NewHub 创建推送中心
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe 注册连接到主题
func (h *Hub) Subscribe(subject string, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{conn: conn, subject: subject}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[subject] == nil {
		h.subscribers[subject] = make(map[*Subscriber]struct{})
	}
	h.subscribers[subject][sub] = struct{}{}
	return sub
}

// Unsubscribe 注销连接
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subscribers[sub.subject]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subscribers, sub.subject)
		}
	}
}

// SubscriberCount 主题在线连接数
func (h *Hub) SubscriberCount(subject string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[subject])
}

// Publish 向主题推送事件，无人在线时静默返回
func (h *Hub) Publish(subject string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Errorw("realtime_event_marshal_failed", "subject", subject, "type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subscribers[subject]))
	for sub := range h.subscribers[subject] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.write(payload); err != nil {
			logger.Warnw("realtime_push_failed", "subject", subject, "type", event.Type, "error", err)
			h.Unsubscribe(sub)
			_ = sub.conn.Close()
		}
	}
}

// PublishToUser 向指定用户推送事件
func (h *Hub) PublishToUser(userID uint, event Event) {
	h.Publish(UserSubject(userID), event)
}

func (s *Subscriber) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}
