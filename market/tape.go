package market

// DefaultTapeSize 成交带默认保留条数。
const DefaultTapeSize = 30

// Trade represents a single executed trade from the upstream feed.
type Trade struct {
	ID           int64
	Price        float64
	Qty          float64
	Time         int64 // epoch ms
	IsBuyerMaker bool
}

// Tape 最近成交列表：最新一条在下标 0，超出容量从尾部淘汰。
// 上游重复投递同一 trade id 时不去重，只计数（去重可能掩盖上游问题）。
type Tape struct {
	max         int
	trades      []Trade
	redelivered int64
}

func NewTape(max int) *Tape {
	if max <= 0 {
		max = DefaultTapeSize
	}
	return &Tape{max: max, trades: make([]Trade, 0, max)}
}

// Push 头部插入一条成交。
func (t *Tape) Push(tr Trade) {
	for _, held := range t.trades {
		if held.ID == tr.ID {
			t.redelivered++
			break
		}
	}
	t.trades = append(t.trades, Trade{})
	copy(t.trades[1:], t.trades)
	t.trades[0] = tr
	if len(t.trades) > t.max {
		t.trades = t.trades[:t.max]
	}
}

// Trades 返回当前成交的拷贝，最新在前。
func (t *Tape) Trades() []Trade {
	return append([]Trade(nil), t.trades...)
}

func (t *Tape) Len() int {
	return len(t.trades)
}

// Redelivered 返回在缓冲内观察到的重复 trade id 次数。
func (t *Tape) Redelivered() int64 {
	return t.redelivered
}
