package feed

import (
	"sync"
	"time"

	"exchange-terminal-go/gateway"
)

// streamConn 抽象底层流连接，便于单测注入假实现。
type streamConn interface {
	Start()
	Close()
}

// MuxConfig 上游流复用器配置。
type MuxConfig struct {
	Endpoint    string
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	ReadTimeout time.Duration
}

type muxEntry struct {
	conn    streamConn
	subs    map[int64]chan []byte
	state   gateway.StreamState
	errSeen bool
}

// Mux 按 (symbol, channel) 主题复用上游连接并做引用计数：
// 首个订阅者建连，之后的订阅者共享同一条连接，最后一个退订时关闭。
// 同一符号挂多少个下游消费者都只占一条上游连接。
type Mux struct {
	cfg MuxConfig

	mu      sync.Mutex
	entries map[string]*muxEntry
	nextID  int64

	dial func(topic string, handler func([]byte), onState func(gateway.StreamState)) streamConn

	// OnState 可选钩子：状态迁移时回调（日志/指标用）。
	OnState func(topic string, st gateway.StreamState)
}

func NewMux(cfg MuxConfig) *Mux {
	m := &Mux{
		cfg:     cfg,
		entries: make(map[string]*muxEntry),
	}
	m.dial = func(topic string, handler func([]byte), onState func(gateway.StreamState)) streamConn {
		return gateway.NewStreamConn(gateway.StreamConfig{
			Endpoint:    cfg.Endpoint,
			Topic:       topic,
			MaxRetries:  cfg.MaxRetries,
			BaseBackoff: cfg.BaseBackoff,
			MaxBackoff:  cfg.MaxBackoff,
			ReadTimeout: cfg.ReadTimeout,
		}, handler, onState)
	}
	return m
}

// Subscription 一次订阅；C 上收到该主题的每条原始消息。
type Subscription struct {
	Topic string
	C     <-chan []byte

	mux  *Mux
	id   int64
	once sync.Once
}

// Unsubscribe 归还引用；计数归零时上游连接被关闭。幂等。
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.mux.release(s.Topic, s.id) })
}

// Subscribe 订阅一个主题。
func (m *Mux) Subscribe(topic string) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[topic]
	if !ok {
		e = &muxEntry{
			subs:  make(map[int64]chan []byte),
			state: gateway.StreamConnecting,
		}
		e.conn = m.dial(topic,
			func(msg []byte) { m.fanout(topic, msg) },
			func(st gateway.StreamState) { m.handleState(topic, st) },
		)
		m.entries[topic] = e
		e.conn.Start()
	}

	m.nextID++
	id := m.nextID
	ch := make(chan []byte, 64)
	e.subs[id] = ch

	return &Subscription{Topic: topic, C: ch, mux: m, id: id}
}

// MarkError 置位该主题的粘性错误标记（解码失败等）。
// 不关闭连接：后续合法消息照常处理。
func (m *Mux) MarkError(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[topic]; ok {
		e.errSeen = true
	}
}

// Status 单个主题的健康状态。
type Status struct {
	Topic   string              `json:"topic"`
	State   gateway.StreamState `json:"state"`
	ErrSeen bool                `json:"errSeen"`
}

// Status 返回主题当前状态；未订阅的主题返回 ok=false。
func (m *Mux) Status(topic string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[topic]
	if !ok {
		return Status{}, false
	}
	return Status{Topic: topic, State: e.state, ErrSeen: e.errSeen}, true
}

// Statuses 返回全部活跃主题的状态。
func (m *Mux) Statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, len(m.entries))
	for topic, e := range m.entries {
		out = append(out, Status{Topic: topic, State: e.state, ErrSeen: e.errSeen})
	}
	return out
}

// ActiveConns 当前占用的上游连接数。
func (m *Mux) ActiveConns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close 关闭全部上游连接。
func (m *Mux) Close() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*muxEntry)
	m.mu.Unlock()

	// conn.Close 会同步回调状态钩子并重新抢锁，必须在锁外关
	for _, e := range entries {
		for _, ch := range e.subs {
			close(ch)
		}
		e.conn.Close()
	}
}

func (m *Mux) fanout(topic string, msg []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[topic]
	if !ok {
		return
	}
	for _, ch := range e.subs {
		select {
		case ch <- msg:
		default: // 慢消费者丢消息
		}
	}
}

func (m *Mux) handleState(topic string, st gateway.StreamState) {
	m.mu.Lock()
	if e, ok := m.entries[topic]; ok {
		e.state = st
		if st == gateway.StreamFailed {
			e.errSeen = true
		}
	}
	m.mu.Unlock()
	if m.OnState != nil {
		m.OnState(topic, st)
	}
}

func (m *Mux) release(topic string, id int64) {
	m.mu.Lock()
	e, ok := m.entries[topic]
	if !ok {
		m.mu.Unlock()
		return
	}
	ch, ok := e.subs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(e.subs, id)
	close(ch)
	if len(e.subs) > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.entries, topic)
	conn := e.conn
	m.mu.Unlock()

	// 同上：状态回调会抢 m.mu
	conn.Close()
}
