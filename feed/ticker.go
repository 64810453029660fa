package feed

import (
	"context"
	"sync"

	"exchange-terminal-go/gateway"
	"exchange-terminal-go/infrastructure/logger"
	"exchange-terminal-go/market"
	"exchange-terminal-go/monitor"
)

// BoardStore 多个 TickerFeed 共享的线程安全看板。
type BoardStore struct {
	mu    sync.RWMutex
	board *market.Board
}

func NewBoardStore() *BoardStore {
	return &BoardStore{board: market.NewBoard()}
}

func (s *BoardStore) Update(sample market.TickerSample) {
	s.mu.Lock()
	s.board.Update(sample)
	s.mu.Unlock()
}

func (s *BoardStore) Get(symbol string) (market.TickerSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Get(symbol)
}

func (s *BoardStore) Samples() []market.TickerSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Samples()
}

// TickerFeed 订阅一个符号的 ticker 流，整体替换看板上的该符号样本。
type TickerFeed struct {
	symbol string
	topic  string

	mux   *Mux
	store *BoardStore
	pub   *market.Publisher
	log   *logger.Logger
	mon   *monitor.Monitor

	sub    *Subscription
	cancel context.CancelFunc
}

func NewTickerFeed(symbol string, mux *Mux, store *BoardStore, pub *market.Publisher, log *logger.Logger, mon *monitor.Monitor) *TickerFeed {
	return &TickerFeed{
		symbol: symbol,
		topic:  gateway.Topic(symbol, gateway.ChannelTicker, ""),
		mux:    mux,
		store:  store,
		pub:    pub,
		log:    log,
		mon:    mon,
	}
}

func (f *TickerFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.sub = f.mux.Subscribe(f.topic)
	go f.consume(ctx)
}

func (f *TickerFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
}

func (f *TickerFeed) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-f.sub.C:
			if !ok {
				return
			}
			sample, err := gateway.ParseTicker(msg)
			if err != nil {
				f.mux.MarkError(f.topic)
				if f.mon != nil {
					f.mon.RecordDecodeError(string(gateway.ChannelTicker))
				}
				if f.log != nil {
					f.log.LogError(err, map[string]interface{}{"symbol": f.symbol, "op": "ticker_decode"})
				}
				continue
			}
			if sample.Symbol == "" {
				sample.Symbol = f.symbol
			}
			f.store.Update(sample)
			if f.mon != nil {
				f.mon.RecordTickerUpdate()
			}
			if f.pub != nil {
				f.pub.PublishTicker(sample)
			}
		}
	}
}
