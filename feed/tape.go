package feed

import (
	"context"
	"sync"

	"exchange-terminal-go/gateway"
	"exchange-terminal-go/infrastructure/logger"
	"exchange-terminal-go/market"
	"exchange-terminal-go/monitor"
)

// TapeFeed 维护一个符号的成交带：订阅 trade 流，逐条头插。
type TapeFeed struct {
	symbol string
	topic  string

	mux *Mux
	pub *market.Publisher
	log *logger.Logger
	mon *monitor.Monitor

	mu   sync.Mutex
	tape *market.Tape

	sub    *Subscription
	cancel context.CancelFunc
}

func NewTapeFeed(symbol string, size int, mux *Mux, pub *market.Publisher, log *logger.Logger, mon *monitor.Monitor) *TapeFeed {
	return &TapeFeed{
		symbol: symbol,
		topic:  gateway.Topic(symbol, gateway.ChannelTrade, ""),
		mux:    mux,
		pub:    pub,
		log:    log,
		mon:    mon,
		tape:   market.NewTape(size),
	}
}

func (f *TapeFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.sub = f.mux.Subscribe(f.topic)
	go f.consume(ctx)
}

func (f *TapeFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
}

// Trades 返回成交拷贝，最新在前。
func (f *TapeFeed) Trades() []market.Trade {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tape.Trades()
}

func (f *TapeFeed) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-f.sub.C:
			if !ok {
				return
			}
			tr, err := gateway.ParseTrade(msg)
			if err != nil {
				f.mux.MarkError(f.topic)
				if f.mon != nil {
					f.mon.RecordDecodeError(string(gateway.ChannelTrade))
				}
				if f.log != nil {
					f.log.LogError(err, map[string]interface{}{"symbol": f.symbol, "op": "trade_decode"})
				}
				continue
			}

			f.mu.Lock()
			before := f.tape.Redelivered()
			f.tape.Push(tr)
			redelivered := f.tape.Redelivered() > before
			f.mu.Unlock()

			if redelivered && f.mon != nil {
				f.mon.RecordTradeRedelivery()
			}
			if f.pub != nil {
				f.pub.PublishTape(market.TapeUpdate{Symbol: f.symbol, Trade: tr})
			}
		}
	}
}
