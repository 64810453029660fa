package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"exchange-terminal-go/market"
)

// Channel 行情推送频道。
type Channel string

const (
	ChannelDepth  Channel = "depth"
	ChannelTicker Channel = "ticker"
	ChannelTrade  Channel = "trade"
	ChannelKline  Channel = "kline"
)

// Topic 构造 {symbol}@{channel} 形式的订阅主题；kline 频道附带周期。
func Topic(symbol string, ch Channel, interval string) string {
	topic := strings.ToLower(symbol) + "@" + string(ch)
	if ch == ChannelKline && interval != "" {
		topic += "_" + interval
	}
	return topic
}

// CombinedMessage 对应 combined stream 的 {stream, data} 包装。
type CombinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type depthDeltaMsg struct {
	Symbol string           `json:"s"`
	Bids   [][2]json.Number `json:"b"`
	Asks   [][2]json.Number `json:"a"`
}

// ParseDepthDelta 解析 depth 增量：b/a 各为 (price, qty) 对，qty 为 0 表示删档。
func ParseDepthDelta(raw []byte) (bids, asks []market.PriceLevel, err error) {
	var msg depthDeltaMsg
	if err = json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, fmt.Errorf("depth delta: %w", err)
	}
	if bids, err = parseLevels(msg.Bids); err != nil {
		return nil, nil, fmt.Errorf("depth delta bids: %w", err)
	}
	if asks, err = parseLevels(msg.Asks); err != nil {
		return nil, nil, fmt.Errorf("depth delta asks: %w", err)
	}
	return bids, asks, nil
}

type tickerMsg struct {
	Symbol        string      `json:"s"`
	LastPrice     json.Number `json:"c"`
	ChangePercent json.Number `json:"P"`
}

// ParseTicker 解析 24h ticker：c 为最新价，P 为涨跌幅。
func ParseTicker(raw []byte) (market.TickerSample, error) {
	var msg tickerMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return market.TickerSample{}, fmt.Errorf("ticker: %w", err)
	}
	price, err := msg.LastPrice.Float64()
	if err != nil {
		return market.TickerSample{}, fmt.Errorf("ticker price: %w", err)
	}
	pct, err := msg.ChangePercent.Float64()
	if err != nil {
		return market.TickerSample{}, fmt.Errorf("ticker percent: %w", err)
	}
	return market.TickerSample{Symbol: msg.Symbol, LastPrice: price, ChangePercent: pct}, nil
}

type tradeMsg struct {
	ID           int64       `json:"t"`
	Price        json.Number `json:"p"`
	Qty          json.Number `json:"q"`
	Time         int64       `json:"T"`
	IsBuyerMaker bool        `json:"m"`
}

// ParseTrade 解析单笔成交。
func ParseTrade(raw []byte) (market.Trade, error) {
	var msg tradeMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return market.Trade{}, fmt.Errorf("trade: %w", err)
	}
	price, err := msg.Price.Float64()
	if err != nil {
		return market.Trade{}, fmt.Errorf("trade price: %w", err)
	}
	qty, err := msg.Qty.Float64()
	if err != nil {
		return market.Trade{}, fmt.Errorf("trade qty: %w", err)
	}
	return market.Trade{
		ID:           msg.ID,
		Price:        price,
		Qty:          qty,
		Time:         msg.Time,
		IsBuyerMaker: msg.IsBuyerMaker,
	}, nil
}

type klineMsg struct {
	Kline struct {
		OpenTime int64       `json:"t"`
		Open     json.Number `json:"o"`
		High     json.Number `json:"h"`
		Low      json.Number `json:"l"`
		Close    json.Number `json:"c"`
	} `json:"k"`
}

// ParseKline 解析流式 K 线，取 k 对象的 OHLC。
func ParseKline(raw []byte) (market.Candle, error) {
	var msg klineMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return market.Candle{}, fmt.Errorf("kline: %w", err)
	}
	o, err := msg.Kline.Open.Float64()
	if err != nil {
		return market.Candle{}, fmt.Errorf("kline open: %w", err)
	}
	h, _ := msg.Kline.High.Float64()
	l, _ := msg.Kline.Low.Float64()
	c, _ := msg.Kline.Close.Float64()
	return market.Candle{OpenTime: msg.Kline.OpenTime, Open: o, High: h, Low: l, Close: c}, nil
}

// UnwrapCombined 剥掉 combined stream 包装；非包装消息原样返回。
func UnwrapCombined(raw []byte) (topic string, data []byte) {
	var msg CombinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Stream == "" {
		return "", raw
	}
	return msg.Stream, msg.Data
}
