package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-scout/backend/internal/handler/invocation"
	"github.com/zhouzirui/z-scout/backend/internal/service/agent"
)

const (
	defaultReadTimeout  = 60 * time.Second
	defaultPingInterval = 54 * time.Second
	writeTimeout        = 10 * time.Second
	frameBacklog        = 4
)

// WebSocketHandler 通过 WebSocket 进行多轮问答，每个文本帧是一次调用。
type WebSocketHandler struct {
	invoker      invocation.Invoker
	upgrader     websocket.Upgrader
	readTimeout  time.Duration
	pingInterval time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(invoker invocation.Invoker) *WebSocketHandler {
	return &WebSocketHandler{
		invoker: invoker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readTimeout:  defaultReadTimeout,
		pingInterval: defaultPingInterval,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsConn 串行化写操作，gorilla 连接只允许一个并发写者。
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msgType string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	msg := outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().Unix()}
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msgType, err)
	}
}

func (c *wsConn) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接。读取在独立的 goroutine 中进行，
// 调用执行期间仍能处理 pong 并感知客户端断开，断开时取消正在进行的调用。
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer raw.Close()

	conn := &wsConn{conn: raw}
	log.Printf("[websocket] new connection from %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	frames := make(chan []byte, frameBacklog)
	go h.readLoop(ctx, cancel, raw, frames)
	go h.pingLoop(ctx, conn)

	conn.send("connected", map[string]any{"status": "ready"})

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-frames:
			if !ok {
				return
			}
			h.handleFrame(ctx, conn, data)
		}
	}
}

// readLoop 持续读取文本帧，读失败即视为连接结束并取消 ctx。
// 截止时间在每次读取前重置，长时间的调用不会让下一次读取立即超时。
func (h *WebSocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, raw *websocket.Conn, frames chan<- []byte) {
	defer cancel()
	defer close(frames)

	for {
		raw.SetReadDeadline(time.Now().Add(h.readTimeout))
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

// handleFrame 运行一次调用：逐步推送 step 帧，最后推送 result 或 error 帧。
func (h *WebSocketHandler) handleFrame(ctx context.Context, conn *wsConn, data []byte) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		conn.send("error", agent.InvocationResult{Error: agent.ErrInvalidPayload.Error()})
		return
	}

	result := h.invoker.Invoke(ctx, payload, func(step agent.Step) {
		conn.send("step", step)
	})

	if result.Err() != nil {
		conn.send("error", result)
		return
	}
	conn.send("result", result)
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
