package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"exchange-terminal-go/account"
	"exchange-terminal-go/config"
)

// tradectl 交易运维小工具：登录后查交易对/挂单，或直接下单。
//
// 用法：
//
//	tradectl -op markets -quote USDT
//	tradectl -op orders -symbol BTCUSDT
//	tradectl -op place -symbol BTCUSDT -side BUY -type LIMIT -price 64000 -quantity 0.01
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to config file")
	op := flag.String("op", "markets", "markets | orders | place")
	quote := flag.String("quote", "", "quote asset filter for markets")
	symbol := flag.String("symbol", "", "trading pair symbol")
	side := flag.String("side", "BUY", "BUY | SELL")
	ordType := flag.String("type", "LIMIT", "LIMIT | MARKET")
	price := flag.String("price", "", "limit price, empty for market orders")
	quantity := flag.String("quantity", "", "order quantity")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	email := os.Getenv("TERMINAL_EMAIL")
	password := os.Getenv("TERMINAL_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("TERMINAL_EMAIL / TERMINAL_PASSWORD must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 登录走认证服务，拿到的令牌再挂到交易服务的客户端上
	authGql := account.NewGraphQLClient(cfg.Account.AuthURL, nil)
	auth := account.NewAuthService(authGql, nil)
	sess, err := auth.Login(ctx, account.LoginInput{
		Email:     email,
		Password:  password,
		TwoFACode: os.Getenv("TERMINAL_2FA_CODE"),
	})
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Printf("logged in as %s\n", sess.User.Username)

	tradeGql := account.NewGraphQLClient(cfg.Account.TradingURL, nil)
	tradeGql.SetToken(sess.Token)
	trading := account.NewTradingService(tradeGql, nil)

	switch *op {
	case "markets":
		markets, err := trading.ExchangeInfo(ctx, *quote)
		if err != nil {
			log.Fatalf("exchange info: %v", err)
		}
		for _, m := range markets {
			fmt.Printf("%-12s %s/%s %s\n", m.Symbol, m.BaseAsset, m.QuoteAsset, m.Status)
		}
	case "orders":
		orders, err := trading.OpenOrders(ctx, *symbol)
		if err != nil {
			log.Fatalf("open orders: %v", err)
		}
		if len(orders) == 0 {
			fmt.Println("no open orders")
			return
		}
		for _, o := range orders {
			fmt.Printf("%s %-12s %-4s %-6s price=%s qty=%s %s\n",
				o.ID, o.Symbol, o.Side, o.Type, o.Price, o.Quantity, o.Status)
		}
	case "place":
		if *symbol == "" || *quantity == "" {
			log.Fatal("-symbol and -quantity are required for place")
		}
		id, err := trading.PlaceOrder(ctx, account.PlaceOrderInput{
			Symbol:   *symbol,
			Side:     *side,
			Type:     *ordType,
			Price:    *price,
			Quantity: *quantity,
		})
		if err != nil {
			log.Fatalf("place order: %v", err)
		}
		fmt.Printf("order placed: %s\n", id)
	default:
		log.Fatalf("unknown op %q", *op)
	}
}
