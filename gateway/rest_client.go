package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"exchange-terminal-go/market"
)

// MarketRESTClient 行情 REST 客户端；不重试，失败直接报错给调用方。
// HTTPClient 可注入 httptest 的客户端做单测。
type MarketRESTClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    RateLimiter
}

// DepthSnapshot 一次性的盘口快照。
type DepthSnapshot struct {
	LastUpdateID int64
	Bids         []market.PriceLevel
	Asks         []market.PriceLevel
}

type depthResp struct {
	LastUpdateID int64            `json:"lastUpdateId"`
	Bids         [][2]json.Number `json:"bids"`
	Asks         [][2]json.Number `json:"asks"`
}

// Depth 调用 GET /api/v3/depth 拉取初始盘口，每侧最多 limit 档。
func (c *MarketRESTClient) Depth(ctx context.Context, symbol string, limit int) (*DepthSnapshot, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(limit))
	var resp depthResp
	if err := c.getJSON(ctx, "/api/v3/depth", q, &resp); err != nil {
		return nil, fmt.Errorf("depth %s: %w", symbol, err)
	}
	bids, err := parseLevels(resp.Bids)
	if err != nil {
		return nil, fmt.Errorf("depth %s bids: %w", symbol, err)
	}
	asks, err := parseLevels(resp.Asks)
	if err != nil {
		return nil, fmt.Errorf("depth %s asks: %w", symbol, err)
	}
	return &DepthSnapshot{LastUpdateID: resp.LastUpdateID, Bids: bids, Asks: asks}, nil
}

// Klines 调用 GET /api/v3/klines 拉取历史 K 线。
// 返回行形如 [openTime, "open", "high", "low", "close", ...]。
func (c *MarketRESTClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	var rows [][]json.Number
	if err := c.getJSON(ctx, "/api/v3/klines", q, &rows); err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}
	candles := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("klines %s: short row of %d fields", symbol, len(row))
		}
		openTime, err := row[0].Int64()
		if err != nil {
			return nil, fmt.Errorf("klines %s openTime: %w", symbol, err)
		}
		o, _ := row[1].Float64()
		h, _ := row[2].Float64()
		l, _ := row[3].Float64()
		cl, _ := row[4].Float64()
		candles = append(candles, market.Candle{OpenTime: openTime, Open: o, High: h, Low: l, Close: cl})
	}
	return candles, nil
}

func (c *MarketRESTClient) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseLevels(raw [][2]json.Number) ([]market.PriceLevel, error) {
	levels := make([]market.PriceLevel, 0, len(raw))
	for _, lv := range raw {
		price, err := lv[0].Float64()
		if err != nil {
			return nil, err
		}
		qty, err := lv[1].Float64()
		if err != nil {
			return nil, err
		}
		levels = append(levels, market.PriceLevel{Price: price, Qty: qty})
	}
	return levels, nil
}
