package feed

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"

	"exchange-terminal-go/gateway"
	"exchange-terminal-go/infrastructure/logger"
	"exchange-terminal-go/market"
	"exchange-terminal-go/monitor"
)

// SnapshotAPI 一次性盘口快照拉取。
type SnapshotAPI interface {
	Depth(ctx context.Context, symbol string, limit int) (*gateway.DepthSnapshot, error)
}

// 快照未落地前最多缓存的增量条数，超出丢最旧。
const maxPendingDeltas = 512

type bookDelta struct {
	bids []market.PriceLevel
	asks []market.PriceLevel
}

// BookState 对外暴露的盘口视图。
type BookState struct {
	Symbol    string
	Bids      []market.PriceLevel
	Asks      []market.PriceLevel
	Mid       float64
	Direction market.Direction
	Seeded    bool
	LoadErr   error
}

// BookFeed 维护一个符号的盘口：订阅 depth 流，快照落地前把增量
// 缓存到队列里，落地后按序回放再转为逐条合并。
type BookFeed struct {
	symbol string
	topic  string

	mux  *Mux
	snap SnapshotAPI
	pub  *market.Publisher
	log  *logger.Logger
	mon  *monitor.Monitor

	mu        sync.Mutex
	book      *market.BookView
	tracker   market.MidTracker
	direction market.Direction
	seeded    bool
	loadErr   error
	pending   deque.Deque[bookDelta]

	sub    *Subscription
	cancel context.CancelFunc
}

func NewBookFeed(symbol string, depth int, mux *Mux, snap SnapshotAPI, pub *market.Publisher, log *logger.Logger, mon *monitor.Monitor) *BookFeed {
	return &BookFeed{
		symbol: symbol,
		topic:  gateway.Topic(symbol, gateway.ChannelDepth, ""),
		mux:    mux,
		snap:   snap,
		pub:    pub,
		log:    log,
		mon:    mon,
		book:   market.NewBookView(depth),
	}
}

// Start 先挂流订阅再拉快照，避免两者间隙丢增量。
func (f *BookFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.sub = f.mux.Subscribe(f.topic)
	go f.consume(ctx)
	go f.seed(ctx)
}

// Stop 退订并停止后台 goroutine。
func (f *BookFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
}

// View 返回盘口拷贝。
func (f *BookFeed) View() BookState {
	f.mu.Lock()
	defer f.mu.Unlock()
	bids, asks := f.book.Clone()
	return BookState{
		Symbol:    f.symbol,
		Bids:      bids,
		Asks:      asks,
		Mid:       f.book.Mid(),
		Direction: f.direction,
		Seeded:    f.seeded,
		LoadErr:   f.loadErr,
	}
}

func (f *BookFeed) seed(ctx context.Context) {
	start := time.Now()
	snap, err := f.snap.Depth(ctx, f.symbol, f.book.Depth)
	if err != nil {
		f.mu.Lock()
		f.loadErr = err
		f.mu.Unlock()
		if f.mon != nil {
			f.mon.RecordSnapshotError()
		}
		if f.log != nil {
			f.log.LogError(err, map[string]interface{}{"symbol": f.symbol, "op": "depth_snapshot"})
		}
		return
	}
	if f.mon != nil {
		f.mon.ObserveSnapshotLatency(time.Since(start).Seconds())
	}

	f.mu.Lock()
	f.book.ApplySnapshot(snap.Bids, snap.Asks)
	replayed := f.pending.Len()
	for f.pending.Len() > 0 {
		d := f.pending.PopFront()
		f.book.ApplyDelta(d.bids, d.asks)
	}
	f.seeded = true
	f.loadErr = nil
	update := f.refreshLocked()
	f.mu.Unlock()

	if f.log != nil {
		f.log.LogFeed("snapshot_seeded", f.symbol, map[string]interface{}{
			"lastUpdateId": snap.LastUpdateID,
			"replayed":     replayed,
		})
	}
	f.publish(update)
}

func (f *BookFeed) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-f.sub.C:
			if !ok {
				return
			}
			bids, asks, err := gateway.ParseDepthDelta(msg)
			if err != nil {
				f.mux.MarkError(f.topic)
				if f.mon != nil {
					f.mon.RecordDecodeError(string(gateway.ChannelDepth))
				}
				if f.log != nil {
					f.log.LogError(err, map[string]interface{}{"symbol": f.symbol, "op": "depth_decode"})
				}
				continue
			}
			f.apply(bids, asks)
		}
	}
}

func (f *BookFeed) apply(bids, asks []market.PriceLevel) {
	f.mu.Lock()
	if !f.seeded {
		if f.pending.Len() >= maxPendingDeltas {
			f.pending.PopFront()
		}
		f.pending.PushBack(bookDelta{bids: bids, asks: asks})
		f.mu.Unlock()
		if f.mon != nil {
			f.mon.RecordEarlyDeltaQueued()
		}
		return
	}
	f.book.ApplyDelta(bids, asks)
	update := f.refreshLocked()
	f.mu.Unlock()

	if f.mon != nil {
		f.mon.RecordDeltaApplied()
	}
	f.publish(update)
}

// refreshLocked 重算中间价与方向并组装推送事件；调用方持锁。
func (f *BookFeed) refreshLocked() market.BookUpdate {
	mid := f.book.Mid()
	if mid != 0 {
		if d := f.tracker.Observe(mid); d != market.DirectionFlat {
			f.direction = d
		}
	}
	bids, asks := f.book.Clone()
	return market.BookUpdate{
		Symbol:    f.symbol,
		Bids:      bids,
		Asks:      asks,
		Mid:       mid,
		Direction: f.direction,
	}
}

func (f *BookFeed) publish(u market.BookUpdate) {
	if f.pub != nil {
		f.pub.PublishBook(u)
	}
	if f.mon != nil {
		var bid, ask float64
		if len(u.Bids) > 0 {
			bid = u.Bids[0].Price
		}
		if len(u.Asks) > 0 {
			ask = u.Asks[0].Price
		}
		f.mon.UpdateBookGauges(f.symbol, bid, ask, u.Mid)
	}
}
