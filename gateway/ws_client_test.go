package gateway

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn 按脚本投递消息，读完后阻塞直到被关闭。
type fakeConn struct {
	msgs   [][]byte
	idx    int
	closed chan struct{}
	once   sync.Once
	closes int32
}

func newFakeConn(msgs ...[]byte) *fakeConn {
	return &fakeConn{msgs: msgs, closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	if f.idx < len(f.msgs) {
		m := f.msgs[f.idx]
		f.idx++
		return 1, m, nil
	}
	<-f.closed
	return 0, nil, errors.New("use of closed connection")
}

func (f *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (f *fakeConn) SetPongHandler(func(appData string) error) {}

func (f *fakeConn) Close() error {
	atomic.AddInt32(&f.closes, 1)
	f.once.Do(func() { close(f.closed) })
	return nil
}

func TestStreamConnDeliversAndClosesOnce(t *testing.T) {
	conn := newFakeConn([]byte(`one`), []byte(`two`))
	got := make(chan []byte, 4)
	s := NewStreamConn(StreamConfig{Topic: "btcusdt@trade"}, func(m []byte) { got <- m }, nil)
	s.dial = func() (wsConn, error) { return conn, nil }
	s.Start()

	for _, want := range []string{"one", "two"} {
		select {
		case m := <-got:
			if string(m) != want {
				t.Fatalf("expected %q got %q", want, m)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	s.Close()
	s.Close() // 幂等
	time.Sleep(50 * time.Millisecond)
	select {
	case m := <-got:
		t.Fatalf("message delivered after close: %q", m)
	default:
	}
	if n := atomic.LoadInt32(&conn.closes); n != 1 {
		t.Fatalf("underlying conn closed %d times, want exactly once", n)
	}
}

func TestStreamConnUnwrapsCombinedMessages(t *testing.T) {
	conn := newFakeConn(
		[]byte(`{"stream":"btcusdt@trade","data":{"t":7,"p":"1","q":"2"}}`),
		[]byte(`{"t":8,"p":"3","q":"4"}`), // 单流消息不动
	)
	got := make(chan []byte, 4)
	s := NewStreamConn(StreamConfig{Topic: "btcusdt@trade"}, func(m []byte) { got <- m }, nil)
	s.dial = func() (wsConn, error) { return conn, nil }
	s.Start()
	defer s.Close()

	for _, want := range []string{`{"t":7,"p":"1","q":"2"}`, `{"t":8,"p":"3","q":"4"}`} {
		select {
		case m := <-got:
			if string(m) != want {
				t.Fatalf("expected %q got %q", want, m)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestStreamURLKeepsConfiguredScheme(t *testing.T) {
	cases := []struct {
		endpoint string
		want     string
	}{
		{"wss://stream.example.com:9443", "wss://stream.example.com:9443/ws/btcusdt@depth"},
		{"ws://127.0.0.1:8765", "ws://127.0.0.1:8765/ws/btcusdt@depth"},
		{"stream.example.com", "wss://stream.example.com/ws/btcusdt@depth"},
		{"ws://127.0.0.1:8765/", "ws://127.0.0.1:8765/ws/btcusdt@depth"},
	}
	for _, c := range cases {
		got, err := streamURL(c.endpoint, "btcusdt@depth")
		if err != nil {
			t.Fatalf("streamURL(%q): %v", c.endpoint, err)
		}
		if got != c.want {
			t.Fatalf("streamURL(%q) = %q, want %q", c.endpoint, got, c.want)
		}
	}
}

func TestStreamConnReconnectsThenFails(t *testing.T) {
	var dials int32
	states := make(chan StreamState, 16)
	s := NewStreamConn(StreamConfig{
		Topic:       "btcusdt@depth",
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	}, nil, func(st StreamState) { states <- st })
	s.dial = func() (wsConn, error) {
		atomic.AddInt32(&dials, 1)
		return nil, errors.New("refused")
	}
	s.Start()

	deadline := time.After(2 * time.Second)
	var seen []StreamState
	for {
		select {
		case st := <-states:
			seen = append(seen, st)
			if st == StreamFailed {
				if atomic.LoadInt32(&dials) != 3 { // 首连 + 2 次重试
					t.Fatalf("expected 3 dial attempts, got %d", dials)
				}
				sawReconnecting := false
				for _, s := range seen {
					if s == StreamReconnecting {
						sawReconnecting = true
					}
				}
				if !sawReconnecting {
					t.Fatalf("reconnecting state never surfaced: %v", seen)
				}
				return
			}
		case <-deadline:
			t.Fatalf("never reached failed state, states=%v", seen)
		}
	}
}

func TestStreamConnResumesAfterDrop(t *testing.T) {
	first := newFakeConn([]byte(`a`))
	second := newFakeConn([]byte(`b`))
	conns := []*fakeConn{first, second}
	var dials int32
	got := make(chan []byte, 4)

	s := NewStreamConn(StreamConfig{
		Topic:       "btcusdt@depth",
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
	}, func(m []byte) { got <- m }, nil)
	s.dial = func() (wsConn, error) {
		n := atomic.AddInt32(&dials, 1)
		if int(n) > len(conns) {
			return nil, errors.New("no more conns")
		}
		return conns[n-1], nil
	}
	s.Start()
	defer s.Close()

	select {
	case m := <-got:
		if string(m) != "a" {
			t.Fatalf("expected a got %q", m)
		}
	case <-time.After(time.Second):
		t.Fatalf("first message never arrived")
	}
	first.Close() // 模拟断线

	select {
	case m := <-got:
		if string(m) != "b" {
			t.Fatalf("expected b got %q", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message after reconnect")
	}
}
