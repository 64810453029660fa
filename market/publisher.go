package market

import "sync"

// BookUpdate 推送给订阅者的盘口事件。
type BookUpdate struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Mid       float64
	Direction Direction
}

// TapeUpdate 推送给订阅者的成交事件。
type TapeUpdate struct {
	Symbol string
	Trade  Trade
}

// Publisher 一个轻量事件分发器：非阻塞发送，慢消费者丢消息。
type Publisher struct {
	mu         sync.Mutex
	bookSubs   []chan BookUpdate
	tapeSubs   []chan TapeUpdate
	tickerSubs []chan TickerSample
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) SubscribeBook() <-chan BookUpdate {
	ch := make(chan BookUpdate, 16)
	p.mu.Lock()
	p.bookSubs = append(p.bookSubs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Publisher) SubscribeTape() <-chan TapeUpdate {
	ch := make(chan TapeUpdate, 16)
	p.mu.Lock()
	p.tapeSubs = append(p.tapeSubs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Publisher) SubscribeTicker() <-chan TickerSample {
	ch := make(chan TickerSample, 16)
	p.mu.Lock()
	p.tickerSubs = append(p.tickerSubs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Publisher) PublishBook(u BookUpdate) {
	p.mu.Lock()
	subs := p.bookSubs
	p.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (p *Publisher) PublishTape(u TapeUpdate) {
	p.mu.Lock()
	subs := p.tapeSubs
	p.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (p *Publisher) PublishTicker(s TickerSample) {
	p.mu.Lock()
	subs := p.tickerSubs
	p.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
}
