package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"exchange-terminal-go/infrastructure/logger"
	"exchange-terminal-go/market"
	"exchange-terminal-go/monitor"
)

const (
	clientSendBuffer = 32
	writeWait        = 5 * time.Second
	pingInterval     = 30 * time.Second
)

// pushEvent 下行推送信封。
type pushEvent struct {
	Type   string      `json:"type"` // book / trade / ticker
	Symbol string      `json:"symbol"`
	Data   interface{} `json:"data"`
}

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan pushEvent
}

// Hub 把 Publisher 上的行情事件扇出给全部 WebSocket 客户端。
// 慢客户端丢消息，不反压行情管线。
type Hub struct {
	pub *market.Publisher
	log *logger.Logger
	mon *monitor.Monitor

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*wsClient
}

func NewHub(pub *market.Publisher, log *logger.Logger, mon *monitor.Monitor) *Hub {
	return &Hub{
		pub: pub,
		log: log,
		mon: mon,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 终端前端跨端口访问
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*wsClient),
	}
}

// Run 消费行情事件并广播；ctx 取消后退出。
func (h *Hub) Run(ctx context.Context) {
	if h.pub == nil {
		return
	}
	books := h.pub.SubscribeBook()
	tapes := h.pub.SubscribeTape()
	tickers := h.pub.SubscribeTicker()

	for {
		select {
		case <-ctx.Done():
			h.CloseAll()
			return
		case u := <-books:
			h.broadcast(pushEvent{Type: "book", Symbol: u.Symbol, Data: bookResponse{
				Symbol:    u.Symbol,
				Bids:      market.FormatBook(u.Bids, 0),
				Asks:      market.FormatBook(u.Asks, 0),
				Mid:       market.FormatMid(u.Mid),
				Direction: u.Direction.String(),
				Seeded:    true,
			}})
		case u := <-tapes:
			rows := market.FormatTape([]market.Trade{u.Trade})
			h.broadcast(pushEvent{Type: "trade", Symbol: u.Symbol, Data: rows[0]})
		case s := <-tickers:
			h.broadcast(pushEvent{Type: "ticker", Symbol: s.Symbol, Data: s})
		}
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.log != nil {
			h.log.LogError(err, map[string]interface{}{"op": "ws_upgrade"})
		}
		return
	}

	c := &wsClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan pushEvent, clientSendBuffer),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	if h.mon != nil {
		h.mon.SetWSClients(n)
	}
	if h.log != nil {
		h.log.LogFeed("ws_client_connected", "", map[string]interface{}{"id": c.id.String(), "clients": n})
	}

	go h.writePump(c)
	go h.readPump(c)
}

// ClientCount 当前连接数。
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll 踢掉全部客户端。
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[uuid.UUID]*wsClient)
	h.mu.Unlock()
	for _, c := range clients {
		close(c.send)
	}
	if h.mon != nil {
		h.mon.SetWSClients(0)
	}
}

func (h *Hub) broadcast(ev pushEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- ev:
		default: // 慢客户端丢消息
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	cur, ok := h.clients[c.id]
	if ok && cur == c {
		delete(h.clients, c.id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	if h.mon != nil {
		h.mon.SetWSClients(n)
	}
	if h.log != nil {
		h.log.LogFeed("ws_client_disconnected", "", map[string]interface{}{"id": c.id.String(), "clients": n})
	}
}

// readPump 只为探测断连；收到的消息直接丢弃。
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.drop(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.drop(c)
				return
			}
		}
	}
}
