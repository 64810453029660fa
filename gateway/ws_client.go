package gateway

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamState 流连接状态。
type StreamState string

const (
	StreamConnecting   StreamState = "connecting"
	StreamLive         StreamState = "live"
	StreamReconnecting StreamState = "reconnecting"
	StreamFailed       StreamState = "failed"
	StreamClosed       StreamState = "closed"
)

// wsConn 抽象 gorilla 连接的读取面，便于单测注入假连接。
type wsConn interface {
	ReadMessage() (int, []byte, error)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// StreamConfig 单个 {symbol}@{channel} 主题的连接配置。
type StreamConfig struct {
	Endpoint    string // 例如 wss://stream.binance.com:9443
	Topic       string
	MaxRetries  int           // 重连上限，超出进入 failed
	BaseBackoff time.Duration // 首次重连等待
	MaxBackoff  time.Duration
	ReadTimeout time.Duration
}

func (c *StreamConfig) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
}

// StreamConn 维护一条到 /ws/{topic} 的推送连接：
// 断线后按指数退避加抖动重连，连续失败超过上限进入 failed；
// Close 后不再投递任何消息。
type StreamConn struct {
	cfg     StreamConfig
	handler func(msg []byte)
	onState func(StreamState)

	dial func() (wsConn, error)

	mu     sync.Mutex
	conn   wsConn
	done   chan struct{}
	closed sync.Once
}

func NewStreamConn(cfg StreamConfig, handler func([]byte), onState func(StreamState)) *StreamConn {
	cfg.applyDefaults()
	s := &StreamConn{
		cfg:     cfg,
		handler: handler,
		onState: onState,
		done:    make(chan struct{}),
	}
	s.dial = s.dialUpstream
	return s
}

// Start 启动后台读循环。
func (s *StreamConn) Start() {
	go s.run()
}

// Close 关闭连接；幂等，底层连接只关一次。
func (s *StreamConn) Close() {
	s.closed.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()
		s.setState(StreamClosed)
	})
}

func (s *StreamConn) run() {
	retries := 0
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if retries == 0 {
			s.setState(StreamConnecting)
		} else {
			s.setState(StreamReconnecting)
		}

		conn, err := s.dial()
		if err != nil {
			retries++
			if retries > s.cfg.MaxRetries {
				s.setState(StreamFailed)
				return
			}
			s.sleep(backoffWithJitter(s.cfg.BaseBackoff, s.cfg.MaxBackoff, retries))
			continue
		}

		s.mu.Lock()
		select {
		case <-s.done:
			// Close 与拨号竞态：连接归 Close 前的状态机已经结束
			s.mu.Unlock()
			_ = conn.Close()
			return
		default:
		}
		s.conn = conn
		s.mu.Unlock()

		s.setState(StreamLive)
		retries = 0

		s.readLoop(conn)

		// Close 已经关过的连接不再重复关
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
			_ = conn.Close()
		}
		s.mu.Unlock()

		select {
		case <-s.done:
			return
		default:
		}
		retries++
		if retries > s.cfg.MaxRetries {
			s.setState(StreamFailed)
			return
		}
		s.sleep(backoffWithJitter(s.cfg.BaseBackoff, s.cfg.MaxBackoff, retries))
	}
}

func (s *StreamConn) readLoop(conn wsConn) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		select {
		case <-s.done:
			return
		default:
		}
		if s.handler != nil {
			// combined stream 的 {stream,data} 包装在这里剥掉，handler 只见裸消息
			_, data := UnwrapCombined(msg)
			s.handler(data)
		}
	}
}

func (s *StreamConn) dialUpstream() (wsConn, error) {
	target, err := streamURL(s.cfg.Endpoint, s.cfg.Topic)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.cfg.Topic, err)
	}
	return conn, nil
}

// streamURL 拼出 /ws/{topic} 的完整地址；端点没写 scheme 时默认 wss，
// 写了 ws:// 的（本地联调）原样保留。
func streamURL(endpoint, topic string) (string, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "wss://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("endpoint %q: %w", endpoint, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + topic
	return u.String(), nil
}

func (s *StreamConn) setState(st StreamState) {
	if s.onState != nil {
		s.onState(st)
	}
}

func (s *StreamConn) sleep(d time.Duration) {
	select {
	case <-s.done:
	case <-time.After(d):
	}
}

// backoffWithJitter 第 n 次重试等待 base*2^(n-1)，带半幅随机抖动并封顶。
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
