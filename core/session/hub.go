// Package session 管理舞台会话以及订阅会话帧的 WebSocket 客户端。
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"LyricStage/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	// 系统消息
	MsgTypeError MessageType = "error" // 错误消息
	MsgTypePing  MessageType = "ping"  // 心跳
	MsgTypePong  MessageType = "pong"  // 心跳响应
	MsgTypeSync  MessageType = "sync"  // 会话状态同步
	MsgTypeClose MessageType = "close" // 会话关闭

	// 舞台帧
	MsgTypeFrame MessageType = "frame"

	// 播放控制消息
	MsgTypePlay  MessageType = "play"
	MsgTypePause MessageType = "pause"
	MsgTypeStop  MessageType = "stop"
	MsgTypeSeek  MessageType = "seek"
	MsgTypeScene MessageType = "scene" // 切换场景
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ErrorData 错误消息数据
type ErrorData struct {
	Message string `json:"message"`
}

const (
	sendBufferSize = 64
	readLimit      = 4096
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
)

// Client WebSocket 客户端
type Client struct {
	ID        string
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	SessionID string
}

// NewClient 创建客户端，ID 随机生成
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
		SessionID: sessionID,
	}
}

// Hub 会话 WebSocket 管理中心
type Hub struct {
	// 会话 -> 客户端集合
	sessions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	closeAll   chan string

	mu   sync.RWMutex
	done chan struct{}
	stop sync.Once
}

// BroadcastMessage 广播消息，Target 不为空时只发给该客户端
type BroadcastMessage struct {
	SessionID string
	Message   []byte
	Target    *Client
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		closeAll:   make(chan string),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToSession(msg)

		case sessionID := <-h.closeAll:
			h.mu.Lock()
			for client := range h.sessions[sessionID] {
				h.removeClient(client)
			}
			h.mu.Unlock()

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub，可以重复调用
func (h *Hub) Stop() {
	h.stop.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[client.SessionID] == nil {
		h.sessions[client.SessionID] = make(map[*Client]bool)
	}
	h.sessions[client.SessionID][client] = true

	logger.Info("client registered",
		logger.String("sessionId", client.SessionID),
		logger.String("client", client.ID))
}

// removeClient 移除客户端（内部方法，需要持有锁）
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.sessions[client.SessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.sessions, client.SessionID)
	}

	logger.Info("client unregistered",
		logger.String("sessionId", client.SessionID),
		logger.String("client", client.ID))
}

func (h *Hub) broadcastToSession(msg *BroadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.sessions[msg.SessionID] {
		if msg.Target != nil && client != msg.Target {
			continue
		}
		select {
		case client.Send <- msg.Message:
		default:
			// 发送缓冲区满，移除慢客户端
			logger.Warn("client send buffer full, dropping",
				logger.String("sessionId", msg.SessionID),
				logger.String("client", client.ID))
			h.removeClient(client)
		}
	}
}

// cleanup 清理所有连接
func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.sessions {
		for client := range clients {
			close(client.Send)
		}
	}
	h.sessions = make(map[string]map[*Client]bool)
}

// Register 注册客户端，Hub 已停止时返回 false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// CloseSession 断开会话的所有客户端
func (h *Hub) CloseSession(sessionID string) {
	select {
	case h.closeAll <- sessionID:
	case <-h.done:
	}
}

// Broadcast 广播消息到会话。广播队列满时丢弃，帧是周期性的，下一帧会覆盖。
func (h *Hub) Broadcast(sessionID string, message []byte) {
	select {
	case h.broadcast <- &BroadcastMessage{SessionID: sessionID, Message: message}:
	case <-h.done:
	default:
		logger.Debug("broadcast queue full, frame dropped", logger.String("sessionId", sessionID))
	}
}

// BroadcastWSMessage 广播 WSMessage
func (h *Hub) BroadcastWSMessage(sessionID string, msg *WSMessage) error {
	msg.SessionID = sessionID
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Broadcast(sessionID, data)
	return nil
}

// ClientCount 获取会话客户端数量
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// ========== Client 方法 ==========

// ReadPump 读取消息循环
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, client *Client, msg *WSMessage)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("sessionId", c.SessionID),
					logger.String("client", c.ID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format",
				logger.ErrorField(err),
				logger.String("sessionId", c.SessionID))
			c.SendMessage(&WSMessage{Type: MsgTypeError, Data: errorData("invalid message format")})
			continue
		}

		if msg.Type == MsgTypePing {
			c.SendMessage(&WSMessage{Type: MsgTypePong})
			continue
		}

		handler(ctx, c, &msg)
	}
}

// WritePump 写入消息循环，每条消息单独一个 WebSocket 帧
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 通过 Hub 发送消息给客户端，Send 通道只由 Hub 写入和关闭
func (c *Client) SendMessage(msg *WSMessage) {
	msg.SessionID = c.SessionID
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case c.Hub.broadcast <- &BroadcastMessage{SessionID: c.SessionID, Message: data, Target: c}:
	case <-c.Hub.done:
	default:
	}
}

func errorData(message string) json.RawMessage {
	data, _ := json.Marshal(ErrorData{Message: message})
	return data
}
