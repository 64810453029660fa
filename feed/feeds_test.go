package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-terminal-go/gateway"
	"exchange-terminal-go/market"
)

type fakeMarketAPI struct {
	gate     chan struct{} // 非 nil 时 Depth 阻塞到 gate 关闭
	snap     *gateway.DepthSnapshot
	depthErr error

	candles  []market.Candle
	klineErr error

	depthCalls int32
	klineLimit int32 // 最近一次 Klines 请求的 limit
}

func (f *fakeMarketAPI) Depth(ctx context.Context, symbol string, limit int) (*gateway.DepthSnapshot, error) {
	atomic.AddInt32(&f.depthCalls, 1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.depthErr != nil {
		return nil, f.depthErr
	}
	return f.snap, nil
}

func (f *fakeMarketAPI) Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	atomic.StoreInt32(&f.klineLimit, int32(limit))
	if f.klineErr != nil {
		return nil, f.klineErr
	}
	return f.candles, nil
}

func TestBookFeedBuffersDeltasUntilSnapshot(t *testing.T) {
	m, _, handlers, _ := newTestMux()
	api := &fakeMarketAPI{
		gate: make(chan struct{}),
		snap: &gateway.DepthSnapshot{
			LastUpdateID: 42,
			Bids:         []market.PriceLevel{{Price: 100.00, Qty: 1}},
			Asks:         []market.PriceLevel{{Price: 101.00, Qty: 1}},
		},
	}

	f := NewBookFeed("BTCUSDT", 20, m, api, nil, nil, nil)
	f.Start(context.Background())
	defer f.Stop()

	// 快照未落地，增量应进入缓存队列而不是直接上盘
	handlers["btcusdt@depth"]([]byte(`{"b":[["100.50","2"]],"a":[["100.60","1"]]}`))
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.pending.Len() == 1
	}, time.Second, 5*time.Millisecond)

	view := f.View()
	assert.False(t, view.Seeded)
	assert.Empty(t, view.Bids)

	close(api.gate)
	require.Eventually(t, func() bool { return f.View().Seeded }, time.Second, 5*time.Millisecond)

	// 快照 + 回放的增量合并后：最优买 100.50，最优卖 100.60
	view = f.View()
	require.NotEmpty(t, view.Bids)
	require.NotEmpty(t, view.Asks)
	assert.Equal(t, 100.50, view.Bids[0].Price)
	assert.Equal(t, 100.60, view.Asks[0].Price)
	assert.Equal(t, 100.55, view.Mid)
}

func TestBookFeedAppliesDeltaAfterSeed(t *testing.T) {
	m, _, handlers, _ := newTestMux()
	api := &fakeMarketAPI{
		snap: &gateway.DepthSnapshot{
			Bids: []market.PriceLevel{{Price: 100.00, Qty: 1}},
			Asks: []market.PriceLevel{{Price: 101.00, Qty: 1}},
		},
	}

	f := NewBookFeed("BTCUSDT", 20, m, api, nil, nil, nil)
	f.Start(context.Background())
	defer f.Stop()

	require.Eventually(t, func() bool { return f.View().Seeded }, time.Second, 5*time.Millisecond)

	// 删除唯一买档并抬高卖一
	handlers["btcusdt@depth"]([]byte(`{"b":[["100.00","0"],["99.50","3"]],"a":[["101.00","0"],["102.00","1"]]}`))
	require.Eventually(t, func() bool {
		v := f.View()
		return len(v.Bids) == 1 && v.Bids[0].Price == 99.50
	}, time.Second, 5*time.Millisecond)

	view := f.View()
	assert.Equal(t, 102.00, view.Asks[0].Price)
}

func TestBookFeedSurfacesSnapshotFailure(t *testing.T) {
	m, _, handlers, _ := newTestMux()
	api := &fakeMarketAPI{depthErr: errors.New("depth: 502 Bad Gateway")}

	f := NewBookFeed("BTCUSDT", 20, m, api, nil, nil, nil)
	f.Start(context.Background())
	defer f.Stop()

	require.Eventually(t, func() bool { return f.View().LoadErr != nil }, time.Second, 5*time.Millisecond)

	// 失败后增量继续缓存，状态保持未就绪
	handlers["btcusdt@depth"]([]byte(`{"b":[["100.50","2"]],"a":[]}`))
	view := f.View()
	assert.False(t, view.Seeded)
	assert.Empty(t, view.Bids)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.depthCalls))
}

func TestBookFeedMarksDecodeErrorSticky(t *testing.T) {
	m, _, handlers, _ := newTestMux()
	api := &fakeMarketAPI{snap: &gateway.DepthSnapshot{
		Bids: []market.PriceLevel{{Price: 100.00, Qty: 1}},
		Asks: []market.PriceLevel{{Price: 101.00, Qty: 1}},
	}}

	f := NewBookFeed("BTCUSDT", 20, m, api, nil, nil, nil)
	f.Start(context.Background())
	defer f.Stop()
	require.Eventually(t, func() bool { return f.View().Seeded }, time.Second, 5*time.Millisecond)

	handlers["btcusdt@depth"]([]byte(`not-json`))
	require.Eventually(t, func() bool {
		st, ok := m.Status("btcusdt@depth")
		return ok && st.ErrSeen
	}, time.Second, 5*time.Millisecond)

	// 坏消息之后的合法增量照常处理
	handlers["btcusdt@depth"]([]byte(`{"b":[["100.50","2"]],"a":[]}`))
	require.Eventually(t, func() bool {
		v := f.View()
		return len(v.Bids) > 0 && v.Bids[0].Price == 100.50
	}, time.Second, 5*time.Millisecond)
}

func TestTapeFeedPushesNewestFirst(t *testing.T) {
	m, _, handlers, _ := newTestMux()

	f := NewTapeFeed("BTCUSDT", 30, m, nil, nil, nil)
	f.Start(context.Background())
	defer f.Stop()

	handlers["btcusdt@trade"]([]byte(`{"t":1,"p":"100.10","q":"0.5","T":1700000000000,"m":false}`))
	handlers["btcusdt@trade"]([]byte(`{"t":2,"p":"100.20","q":"0.3","T":1700000001000,"m":true}`))

	require.Eventually(t, func() bool { return len(f.Trades()) == 2 }, time.Second, 5*time.Millisecond)

	trades := f.Trades()
	assert.Equal(t, int64(2), trades[0].ID, "最新成交在最前")
	assert.Equal(t, int64(1), trades[1].ID)
	assert.Equal(t, 100.20, trades[0].Price)
	assert.True(t, trades[0].IsBuyerMaker)
}

func TestTapeFeedKeepsRedeliveredTrades(t *testing.T) {
	m, _, handlers, _ := newTestMux()

	f := NewTapeFeed("BTCUSDT", 30, m, nil, nil, nil)
	f.Start(context.Background())
	defer f.Stop()

	payload := []byte(`{"t":7,"p":"100.10","q":"0.5","T":1700000000000,"m":false}`)
	handlers["btcusdt@trade"](payload)
	handlers["btcusdt@trade"](payload)

	// 重复投递不去重，两条都上带
	require.Eventually(t, func() bool { return len(f.Trades()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestTickerFeedReplacesBoardSample(t *testing.T) {
	m, _, handlers, _ := newTestMux()
	store := NewBoardStore()

	f := NewTickerFeed("BTCUSDT", m, store, nil, nil, nil)
	f.Start(context.Background())
	defer f.Stop()

	handlers["btcusdt@ticker"]([]byte(`{"s":"BTCUSDT","c":"50000.10","P":"2.5"}`))
	require.Eventually(t, func() bool {
		s, ok := store.Get("BTCUSDT")
		return ok && s.LastPrice == 50000.10
	}, time.Second, 5*time.Millisecond)

	handlers["btcusdt@ticker"]([]byte(`{"s":"BTCUSDT","c":"50100.20","P":"-1.0"}`))
	require.Eventually(t, func() bool {
		s, _ := store.Get("BTCUSDT")
		return s.LastPrice == 50100.20
	}, time.Second, 5*time.Millisecond)

	// 整体替换，看板上同一符号只有一个样本
	assert.Len(t, store.Samples(), 1)
	s, _ := store.Get("BTCUSDT")
	assert.Equal(t, -1.0, s.ChangePercent)
}

func TestSeriesFeedSeedsThenStreams(t *testing.T) {
	m, _, handlers, _ := newTestMux()
	api := &fakeMarketAPI{candles: []market.Candle{
		{OpenTime: 1700000000000, Open: 100, High: 101, Low: 99, Close: 100.5},
		{OpenTime: 1700000060000, Open: 100.5, High: 102, Low: 100, Close: 101},
	}}

	f := NewSeriesFeed("BTCUSDT", "1m", 100, m, api, nil, nil)
	f.Start(context.Background())
	defer f.Stop()

	require.Eventually(t, func() bool { return len(f.Candles()) == 2 }, time.Second, 5*time.Millisecond)

	// 同一 OpenTime 覆盖最后一根
	handlers["btcusdt@kline_1m"]([]byte(`{"k":{"t":1700000060000,"o":"100.5","h":"103","l":"100","c":"102.5"}}`))
	require.Eventually(t, func() bool {
		cs := f.Candles()
		return len(cs) == 2 && cs[1].Close == 102.5
	}, time.Second, 5*time.Millisecond)

	// 新的 OpenTime 追加
	handlers["btcusdt@kline_1m"]([]byte(`{"k":{"t":1700000120000,"o":"102.5","h":"104","l":"102","c":"103"}}`))
	require.Eventually(t, func() bool { return len(f.Candles()) == 3 }, time.Second, 5*time.Millisecond)
}

func TestSeriesFeedSeedsConfiguredSize(t *testing.T) {
	m, _, _, _ := newTestMux()
	api := &fakeMarketAPI{candles: []market.Candle{
		{OpenTime: 1700000000000, Open: 100, High: 101, Low: 99, Close: 100.5},
	}}

	f := NewSeriesFeed("BTCUSDT", "1m", 150, m, api, nil, nil)
	f.Start(context.Background())
	defer f.Stop()

	// 历史拉取按配置根数要，而不是固定默认值
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&api.klineLimit) == 150
	}, time.Second, 5*time.Millisecond)
}

func TestManagerTracksConfiguredSymbols(t *testing.T) {
	m, _, _, _ := newTestMux()
	api := &fakeMarketAPI{
		snap: &gateway.DepthSnapshot{
			Bids: []market.PriceLevel{{Price: 100.00, Qty: 1}},
			Asks: []market.PriceLevel{{Price: 101.00, Qty: 1}},
		},
	}

	mgr := NewManager(ManagerConfig{Symbols: []string{"BTCUSDT", "ETHUSDT"}}, m, api, nil, nil, nil)
	mgr.Start(context.Background())
	defer mgr.Stop()

	// 每符号四条管线：depth / trade / ticker / kline
	assert.Equal(t, 8, m.ActiveConns())
	require.Eventually(t, func() bool {
		v, ok := mgr.Book("BTCUSDT")
		return ok && v.Seeded
	}, time.Second, 5*time.Millisecond)

	_, ok := mgr.Book("DOGEUSDT")
	assert.False(t, ok)

	mgr.ApplySymbols([]string{"BTCUSDT", "SOLUSDT"})
	require.Eventually(t, func() bool {
		_, ok := mgr.Book("SOLUSDT")
		return ok
	}, time.Second, 5*time.Millisecond)
	_, ok = mgr.Book("ETHUSDT")
	assert.False(t, ok)
	assert.Equal(t, 8, m.ActiveConns())
	assert.ElementsMatch(t, []string{"BTCUSDT", "SOLUSDT"}, mgr.Symbols())
}
