package feed

import (
	"context"
	"sync"

	"exchange-terminal-go/gateway"
	"exchange-terminal-go/infrastructure/logger"
	"exchange-terminal-go/market"
	"exchange-terminal-go/monitor"
)

// HistoryAPI K 线历史拉取。
type HistoryAPI interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
}

// SeriesFeed 维护一个符号的 K 线序列：REST 历史打底，流式覆盖最后一根。
// 历史未到前的流式更新直接落到序列上，Seed 晚到会整体覆盖（与前端行为一致）。
type SeriesFeed struct {
	symbol   string
	interval string
	topic    string
	size     int

	mux     *Mux
	history HistoryAPI
	log     *logger.Logger
	mon     *monitor.Monitor

	mu      sync.Mutex
	series  *market.Series
	loadErr error

	sub    *Subscription
	cancel context.CancelFunc
}

func NewSeriesFeed(symbol, interval string, size int, mux *Mux, history HistoryAPI, log *logger.Logger, mon *monitor.Monitor) *SeriesFeed {
	if size <= 0 {
		size = market.DefaultSeriesSize
	}
	return &SeriesFeed{
		symbol:   symbol,
		interval: interval,
		topic:    gateway.Topic(symbol, gateway.ChannelKline, interval),
		size:     size,
		mux:      mux,
		history:  history,
		log:      log,
		mon:      mon,
		series:   market.NewSeries(size),
	}
}

func (f *SeriesFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.sub = f.mux.Subscribe(f.topic)
	go f.consume(ctx)
	go f.seed(ctx)
}

func (f *SeriesFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
}

// Candles 返回序列拷贝，时间升序。
func (f *SeriesFeed) Candles() []market.Candle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.series.Candles()
}

// LoadErr 返回历史拉取错误（若有）。
func (f *SeriesFeed) LoadErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadErr
}

func (f *SeriesFeed) seed(ctx context.Context) {
	candles, err := f.history.Klines(ctx, f.symbol, f.interval, f.size)
	if err != nil {
		f.mu.Lock()
		f.loadErr = err
		f.mu.Unlock()
		if f.mon != nil {
			f.mon.RecordSnapshotError()
		}
		if f.log != nil {
			f.log.LogError(err, map[string]interface{}{"symbol": f.symbol, "op": "klines_history"})
		}
		return
	}
	f.mu.Lock()
	f.series.Seed(candles)
	f.loadErr = nil
	f.mu.Unlock()
	if f.log != nil {
		f.log.LogFeed("klines_seeded", f.symbol, map[string]interface{}{"count": len(candles)})
	}
}

func (f *SeriesFeed) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-f.sub.C:
			if !ok {
				return
			}
			candle, err := gateway.ParseKline(msg)
			if err != nil {
				f.mux.MarkError(f.topic)
				if f.mon != nil {
					f.mon.RecordDecodeError(string(gateway.ChannelKline))
				}
				if f.log != nil {
					f.log.LogError(err, map[string]interface{}{"symbol": f.symbol, "op": "kline_decode"})
				}
				continue
			}
			f.mu.Lock()
			f.series.Update(candle)
			f.mu.Unlock()
		}
	}
}
