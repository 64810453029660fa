package account

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountServer(t *testing.T, respond string) (*gqlEcho, *GraphQLClient) {
	t.Helper()
	echo := &gqlEcho{respond: respond}
	srv := httptest.NewServer(http.HandlerFunc(echo.handler))
	t.Cleanup(srv.Close)
	return echo, NewGraphQLClient(srv.URL, nil)
}

func TestLoginStoresTokenOnClient(t *testing.T) {
	echo, gql := newAccountServer(t, `{"data":{"login":{"token":"tok-1","user":{"id":"u1","username":"alice","email":"a@b.c"}}}}`)

	auth := NewAuthService(gql, nil)
	sess, err := auth.Login(context.Background(), LoginInput{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, "tok-1", sess.Token)
	assert.Equal(t, "alice", sess.User.Username)
	assert.Equal(t, "tok-1", gql.Token(), "登录后客户端应携带凭证")
	assert.Equal(t, "a@b.c", echo.lastVars["email"])
	_, sent := echo.lastVars["twoFACode"]
	assert.False(t, sent, "未填两步验证码时不应出现在变量里")

	auth.Logout()
	assert.Empty(t, gql.Token())
}

func TestRegisterOmitsEmptyOptionals(t *testing.T) {
	echo, gql := newAccountServer(t, `{"data":{"register":{"id":"u2","username":"bob","email":"b@c.d"}}}`)

	auth := NewAuthService(gql, nil)
	user, err := auth.Register(context.Background(), RegisterInput{Username: "bob", Email: "b@c.d", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, "u2", user.ID)
	_, hasPhone := echo.lastVars["phone"]
	assert.False(t, hasPhone)
}

func TestSessionExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	sess := NewSession(token, User{ID: "u1"})
	assert.Equal(t, exp.Unix(), sess.ExpiresAt.Unix())
	assert.False(t, sess.Expired(exp.Add(-time.Minute)))
	assert.True(t, sess.Expired(exp.Add(time.Minute)))

	// 不是 JWT 的不透明 token 按永不过期处理
	opaque := NewSession("not-a-jwt", User{})
	assert.False(t, opaque.Expired(time.Now().Add(24*time.Hour)))
}

func TestDepositDecodesDecimalBalance(t *testing.T) {
	echo, gql := newAccountServer(t, `{"data":{"deposit":{"currency":"USDT","balance":1234.56,"locked":0}}}`)

	w := NewWalletService(gql, nil)
	bal, err := w.Deposit(context.Background(), "USDT", decimal.RequireFromString("100.5"))
	require.NoError(t, err)

	assert.Equal(t, "USDT", bal.Currency)
	assert.True(t, bal.Balance.Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, 100.5, echo.lastVars["amount"])
}

func TestTransferSurfacesBusinessError(t *testing.T) {
	_, gql := newAccountServer(t, `{"errors":[{"message":"Insufficient balance"}]}`)

	w := NewWalletService(gql, nil)
	ok, err := w.Transfer(context.Background(), WalletSpot, WalletFunding, "BTC", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "Insufficient balance")
}

func TestWalletsOverviewDecodesNestedWallets(t *testing.T) {
	_, gql := newAccountServer(t, `{"data":{"walletsOverview":{"wallets":[
		{"type":"Spot","balances":[{"currency":"BTC","balance":"0.5"},{"currency":"USDT","balance":"1000"}]},
		{"type":"Funding","balances":[{"currency":"ETH","balance":"2"}]}
	],"totalValueUSD":"34500.25"}}}`)

	w := NewWalletService(gql, nil)
	ov, err := w.WalletsOverview(context.Background())
	require.NoError(t, err)

	require.Len(t, ov.Wallets, 2)
	assert.Equal(t, WalletSpot, ov.Wallets[0].Type)
	assert.Len(t, ov.Wallets[0].Balances, 2)
	assert.True(t, ov.TotalValueUSD.Equal(decimal.RequireFromString("34500.25")))
}

func TestWalletBalanceSingleCurrency(t *testing.T) {
	echo, gql := newAccountServer(t, `{"data":{"walletBalance":{"balance":"42.125"}}}`)

	w := NewWalletService(gql, nil)
	bal, err := w.WalletBalance(context.Background(), WalletMargin, "ETH")
	require.NoError(t, err)

	assert.True(t, bal.Equal(decimal.RequireFromString("42.125")))
	assert.Equal(t, "Margin", echo.lastVars["type"])
	assert.Equal(t, "ETH", echo.lastVars["currency"])
}

func TestExchangeInfoQuoteFilter(t *testing.T) {
	_, gql := newAccountServer(t, `{"data":{"exchangeInfo":{"symbols":[
		{"symbol":"BTCUSDT","baseAsset":"BTC","quoteAsset":"USDT","status":"TRADING"},
		{"symbol":"ETHBTC","baseAsset":"ETH","quoteAsset":"BTC","status":"TRADING"},
		{"symbol":"ETHUSDT","baseAsset":"ETH","quoteAsset":"USDT","status":"TRADING"}
	]}}}`)

	tr := NewTradingService(gql, nil)
	markets, err := tr.ExchangeInfo(context.Background(), "USDT")
	require.NoError(t, err)

	require.Len(t, markets, 2)
	assert.Equal(t, "BTCUSDT", markets[0].Symbol)
	assert.Equal(t, "ETHUSDT", markets[1].Symbol)
}

func TestPlaceOrderMarketOmitsPrice(t *testing.T) {
	echo, gql := newAccountServer(t, `{"data":{"placeOrder":{"id":"ord-9"}}}`)

	tr := NewTradingService(gql, nil)
	id, err := tr.PlaceOrder(context.Background(), PlaceOrderInput{
		Symbol:   "BTCUSDT",
		Side:     "BUY",
		Type:     "MARKET",
		Quantity: "0.01",
	})
	require.NoError(t, err)

	assert.Equal(t, "ord-9", id)
	_, hasPrice := echo.lastVars["price"]
	assert.False(t, hasPrice, "市价单不应携带 price")
}

func TestOpenOrdersPassesSymbol(t *testing.T) {
	echo, gql := newAccountServer(t, `{"data":{"openOrders":[{"id":"1","symbol":"BTCUSDT","side":"BUY","type":"LIMIT","price":"50000","quantity":"0.1","status":"NEW"}]}}`)

	tr := NewTradingService(gql, nil)
	orders, err := tr.OpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	require.Len(t, orders, 1)
	assert.Equal(t, "BTCUSDT", orders[0].Symbol)
	assert.Equal(t, "BTCUSDT", echo.lastVars["symbol"])
}
