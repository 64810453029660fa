package market

// Candle represents one OHLC bar keyed by its open time.
type Candle struct {
	OpenTime int64   `json:"openTime"` // epoch ms
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
}

// DefaultSeriesSize 与前端图表一致的历史根数。
const DefaultSeriesSize = 100

// Series 固定长度的 K 线序列。流式消息按 OpenTime 覆盖当前最后一根，
// 出现新的 OpenTime 则追加并从头部淘汰最旧的。
type Series struct {
	max     int
	candles []Candle
}

func NewSeries(max int) *Series {
	if max <= 0 {
		max = DefaultSeriesSize
	}
	return &Series{max: max, candles: make([]Candle, 0, max)}
}

// Seed 用 REST 历史数据整体替换序列。
func (s *Series) Seed(cs []Candle) {
	if len(cs) > s.max {
		cs = cs[len(cs)-s.max:]
	}
	s.candles = append(s.candles[:0], cs...)
}

// Update 应用一条流式 K 线。
func (s *Series) Update(c Candle) {
	n := len(s.candles)
	if n > 0 && s.candles[n-1].OpenTime == c.OpenTime {
		s.candles[n-1] = c
		return
	}
	s.candles = append(s.candles, c)
	if len(s.candles) > s.max {
		s.candles = s.candles[1:]
	}
}

// Candles 返回序列拷贝，时间升序。
func (s *Series) Candles() []Candle {
	return append([]Candle(nil), s.candles...)
}

func (s *Series) Len() int {
	return len(s.candles)
}
