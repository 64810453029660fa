package account

import (
	"context"
	"strings"

	"exchange-terminal-go/infrastructure/logger"
)

// Market 交易对元信息，来自 exchangeInfo。
type Market struct {
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
	Status     string `json:"status"`
}

// Order 一笔挂单。价格/数量沿用上游的字符串表示，不在网关侧转数值。
type Order struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"type"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Status   string `json:"status"`
}

// PlaceOrderInput 下单参数；市价单 Price 留空。
type PlaceOrderInput struct {
	Symbol   string
	Side     string // BUY / SELL
	Type     string // LIMIT / MARKET
	Price    string
	Quantity string
}

// TradingService 面向独立的交易 GraphQL 服务。
type TradingService struct {
	gql *GraphQLClient
	log *logger.Logger
}

func NewTradingService(gql *GraphQLClient, log *logger.Logger) *TradingService {
	return &TradingService{gql: gql, log: log}
}

const exchangeInfoQuery = `{ exchangeInfo }`

const openOrdersQuery = `
query($symbol: String) {
  openOrders(symbol: $symbol)
}`

const placeOrderMutation = `
mutation Place($symbol: String!, $side: String!, $type: String!, $price: String, $quantity: String!) {
  placeOrder(symbol: $symbol, side: $side, type: $type, price: $price, quantity: $quantity) {
    id
  }
}`

// ExchangeInfo 拉取全部交易对；quoteFilter 非空时只留该计价币种。
func (t *TradingService) ExchangeInfo(ctx context.Context, quoteFilter string) ([]Market, error) {
	var out struct {
		ExchangeInfo struct {
			Symbols []Market `json:"symbols"`
		} `json:"exchangeInfo"`
	}
	if err := t.gql.Do(ctx, exchangeInfoQuery, nil, &out); err != nil {
		return nil, err
	}
	if quoteFilter == "" {
		return out.ExchangeInfo.Symbols, nil
	}
	filtered := out.ExchangeInfo.Symbols[:0]
	for _, m := range out.ExchangeInfo.Symbols {
		if strings.EqualFold(m.QuoteAsset, quoteFilter) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// OpenOrders 查询挂单；symbol 为空时返回全部。
func (t *TradingService) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	var out struct {
		OpenOrders []Order `json:"openOrders"`
	}
	vars := map[string]interface{}{}
	if symbol != "" {
		vars["symbol"] = symbol
	}
	if err := t.gql.Do(ctx, openOrdersQuery, vars, &out); err != nil {
		return nil, err
	}
	return out.OpenOrders, nil
}

// PlaceOrder 下单，返回服务端生成的订单 id。
func (t *TradingService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (string, error) {
	vars := map[string]interface{}{
		"symbol":   in.Symbol,
		"side":     in.Side,
		"type":     in.Type,
		"quantity": in.Quantity,
	}
	if in.Price != "" {
		vars["price"] = in.Price
	}

	var out struct {
		PlaceOrder struct {
			ID string `json:"id"`
		} `json:"placeOrder"`
	}
	if err := t.gql.Do(ctx, placeOrderMutation, vars, &out); err != nil {
		return "", err
	}
	if t.log != nil {
		t.log.LogFeed("order_placed", in.Symbol, map[string]interface{}{
			"side": in.Side,
			"type": in.Type,
			"id":   out.PlaceOrder.ID,
		})
	}
	return out.PlaceOrder.ID, nil
}
