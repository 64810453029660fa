package feed

import (
	"context"
	"sync"

	"exchange-terminal-go/infrastructure/logger"
	"exchange-terminal-go/market"
	"exchange-terminal-go/monitor"
)

// MarketAPI 行情 REST 面：快照 + 历史。*gateway.MarketRESTClient 直接满足。
type MarketAPI interface {
	SnapshotAPI
	HistoryAPI
}

// ManagerConfig 每符号管线的装配参数。
type ManagerConfig struct {
	Symbols       []string
	Depth         int
	TapeSize      int
	KlineInterval string
	SeriesSize    int
}

type symbolFeeds struct {
	book   *BookFeed
	tape   *TapeFeed
	ticker *TickerFeed
	series *SeriesFeed
}

// Manager 为配置的每个符号装配 book/tape/ticker/kline 四条管线，
// 共享同一个 Mux，支持运行中增删符号。
type Manager struct {
	cfg ManagerConfig

	mux   *Mux
	rest  MarketAPI
	pub   *market.Publisher
	board *BoardStore
	log   *logger.Logger
	mon   *monitor.Monitor

	mu    sync.Mutex
	ctx   context.Context
	feeds map[string]*symbolFeeds
}

func NewManager(cfg ManagerConfig, mux *Mux, rest MarketAPI, pub *market.Publisher, log *logger.Logger, mon *monitor.Monitor) *Manager {
	if cfg.Depth <= 0 {
		cfg.Depth = market.DefaultDepth
	}
	if cfg.TapeSize <= 0 {
		cfg.TapeSize = market.DefaultTapeSize
	}
	if cfg.KlineInterval == "" {
		cfg.KlineInterval = "1m"
	}
	if cfg.SeriesSize <= 0 {
		cfg.SeriesSize = market.DefaultSeriesSize
	}
	return &Manager{
		cfg:   cfg,
		mux:   mux,
		rest:  rest,
		pub:   pub,
		board: NewBoardStore(),
		log:   log,
		mon:   mon,
		feeds: make(map[string]*symbolFeeds),
	}
}

// Start 启动全部符号的管线。
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	symbols := append([]string(nil), m.cfg.Symbols...)
	m.mu.Unlock()
	for _, sym := range symbols {
		m.startSymbol(sym)
	}
}

// Stop 停止全部管线并关闭上游连接。
func (m *Manager) Stop() {
	m.mu.Lock()
	feeds := m.feeds
	m.feeds = make(map[string]*symbolFeeds)
	m.mu.Unlock()
	for _, f := range feeds {
		f.book.Stop()
		f.tape.Stop()
		f.ticker.Stop()
		f.series.Stop()
	}
	m.mux.Close()
}

// ApplySymbols 热更新符号集：新增的启动，移除的停掉，其余不动。
func (m *Manager) ApplySymbols(symbols []string) {
	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		want[s] = struct{}{}
	}

	m.mu.Lock()
	var added []string
	var removed []*symbolFeeds
	for sym := range want {
		if _, ok := m.feeds[sym]; !ok {
			added = append(added, sym)
		}
	}
	for sym, f := range m.feeds {
		if _, ok := want[sym]; !ok {
			removed = append(removed, f)
			delete(m.feeds, sym)
		}
	}
	m.cfg.Symbols = symbols
	m.mu.Unlock()

	for _, f := range removed {
		f.book.Stop()
		f.tape.Stop()
		f.ticker.Stop()
		f.series.Stop()
	}
	for _, sym := range added {
		m.startSymbol(sym)
	}
	if m.log != nil && (len(added) > 0 || len(removed) > 0) {
		m.log.LogFeed("symbols_reloaded", "", map[string]interface{}{
			"added":   len(added),
			"removed": len(removed),
		})
	}
}

// Book 返回符号的盘口视图；未跟踪的符号 ok=false。
func (m *Manager) Book(symbol string) (BookState, bool) {
	m.mu.Lock()
	f, ok := m.feeds[symbol]
	m.mu.Unlock()
	if !ok {
		return BookState{}, false
	}
	return f.book.View(), true
}

// Tape 返回符号的成交带。
func (m *Manager) Tape(symbol string) ([]market.Trade, bool) {
	m.mu.Lock()
	f, ok := m.feeds[symbol]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return f.tape.Trades(), true
}

// Klines 返回符号的 K 线序列。
func (m *Manager) Klines(symbol string) ([]market.Candle, bool) {
	m.mu.Lock()
	f, ok := m.feeds[symbol]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return f.series.Candles(), true
}

// Tickers 返回看板上全部样本。
func (m *Manager) Tickers() []market.TickerSample {
	return m.board.Samples()
}

// Statuses 返回全部活跃主题的健康状态。
func (m *Manager) Statuses() []Status {
	return m.mux.Statuses()
}

// Symbols 返回当前跟踪的符号集。
func (m *Manager) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.feeds))
	for sym := range m.feeds {
		out = append(out, sym)
	}
	return out
}

func (m *Manager) startSymbol(symbol string) {
	f := &symbolFeeds{
		book:   NewBookFeed(symbol, m.cfg.Depth, m.mux, m.rest, m.pub, m.log, m.mon),
		tape:   NewTapeFeed(symbol, m.cfg.TapeSize, m.mux, m.pub, m.log, m.mon),
		ticker: NewTickerFeed(symbol, m.mux, m.board, m.pub, m.log, m.mon),
		series: NewSeriesFeed(symbol, m.cfg.KlineInterval, m.cfg.SeriesSize, m.mux, m.rest, m.log, m.mon),
	}

	m.mu.Lock()
	if _, exists := m.feeds[symbol]; exists {
		m.mu.Unlock()
		return
	}
	m.feeds[symbol] = f
	ctx := m.ctx
	m.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	f.book.Start(ctx)
	f.tape.Start(ctx)
	f.ticker.Start(ctx)
	f.series.Start(ctx)
}
