package market

import (
	"math"
	"sort"
)

// DefaultDepth 默认盘口可见深度。
const DefaultDepth = 20

// PriceLevel 盘口一档：价格 -> 数量。
type PriceLevel struct {
	Price float64
	Qty   float64
}

// BookView 按深度截断的双边盘口。Bids 价格降序，Asks 价格升序。
// 同一增量内数量为 0 表示删除该档。
type BookView struct {
	Bids  []PriceLevel
	Asks  []PriceLevel
	Depth int
}

func NewBookView(depth int) *BookView {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &BookView{Depth: depth}
}

// ApplySnapshot 整体替换双边，排序后截断到 Depth。
func (b *BookView) ApplySnapshot(bids, asks []PriceLevel) {
	b.Bids = normalizeSide(append([]PriceLevel(nil), bids...), true, b.Depth)
	b.Asks = normalizeSide(append([]PriceLevel(nil), asks...), false, b.Depth)
}

// ApplyDelta 按价格逐档合并：qty==0 删除该档，否则插入或覆盖。
// 应用完一条增量后重新排序并截断。未提及的档位保留。
func (b *BookView) ApplyDelta(bids, asks []PriceLevel) {
	if len(bids) > 0 {
		b.Bids = mergeSide(b.Bids, bids, true, b.Depth)
	}
	if len(asks) > 0 {
		b.Asks = mergeSide(b.Asks, asks, false, b.Depth)
	}
}

// BestBid 返回最优买档；盘口为空时 ok=false。
func (b *BookView) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk 返回最优卖档。
func (b *BookView) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// Mid 返回中间价，保留两位小数；缺任一侧返回 0。
func (b *BookView) Mid() float64 {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0
	}
	return math.Round((bid.Price+ask.Price)/2*100) / 100
}

// Clone 返回两侧的拷贝，供跨 goroutine 读取。
func (b *BookView) Clone() (bids, asks []PriceLevel) {
	bids = append([]PriceLevel(nil), b.Bids...)
	asks = append([]PriceLevel(nil), b.Asks...)
	return bids, asks
}

func mergeSide(side, updates []PriceLevel, desc bool, depth int) []PriceLevel {
	for _, u := range updates {
		if u.Qty == 0 {
			for i, lv := range side {
				if lv.Price == u.Price {
					side = append(side[:i], side[i+1:]...)
					break
				}
			}
			continue
		}
		replaced := false
		for i, lv := range side {
			if lv.Price == u.Price {
				side[i].Qty = u.Qty
				replaced = true
				break
			}
		}
		if !replaced {
			side = append(side, u)
		}
	}
	return normalizeSide(side, desc, depth)
}

func normalizeSide(side []PriceLevel, desc bool, depth int) []PriceLevel {
	sort.Slice(side, func(i, j int) bool {
		if desc {
			return side[i].Price > side[j].Price
		}
		return side[i].Price < side[j].Price
	})
	if depth > 0 && len(side) > depth {
		side = side[:depth]
	}
	return side
}

// Direction 中间价相对上一次的变动方向。
type Direction int

const (
	DirectionFlat Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "flat"
	}
}

// MidTracker 比较相邻两次（已四舍五入的）中间价得出方向。
// 首次观察返回 flat。
type MidTracker struct {
	prev float64
}

func (t *MidTracker) Observe(mid float64) Direction {
	defer func() { t.prev = mid }()
	if t.prev == 0 || mid == t.prev {
		return DirectionFlat
	}
	if mid > t.prev {
		return DirectionUp
	}
	return DirectionDown
}

// Last 返回最近一次观察到的中间价。
func (t *MidTracker) Last() float64 {
	return t.prev
}
