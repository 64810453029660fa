package market

import "sort"

// TickerSample is a full replacement summary for one symbol: last price and
// 24h percent change. Samples are never partially merged.
type TickerSample struct {
	Symbol        string  `json:"symbol"`
	LastPrice     float64 `json:"lastPrice"`
	ChangePercent float64 `json:"changePercent"`
}

// Board holds the latest sample per symbol. An update replaces only that
// symbol's entry and leaves all others untouched.
type Board struct {
	samples map[string]TickerSample
}

func NewBoard() *Board {
	return &Board{samples: make(map[string]TickerSample)}
}

func (b *Board) Update(s TickerSample) {
	b.samples[s.Symbol] = s
}

func (b *Board) Get(symbol string) (TickerSample, bool) {
	s, ok := b.samples[symbol]
	return s, ok
}

// Samples returns all samples ordered by symbol for stable rendering.
func (b *Board) Samples() []TickerSample {
	out := make([]TickerSample, 0, len(b.samples))
	for _, s := range b.samples {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
