package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"exchange-terminal-go/config"
	"exchange-terminal-go/feed"
	"exchange-terminal-go/gateway"
	"exchange-terminal-go/market"
)

// bookwatch 直连上游，把一个符号的盘口/成交带打到终端，用于排查行情链路。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to config file")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to watch")
	depth := flag.Int("depth", 10, "visible depth per side")
	interval := flag.Duration("interval", time.Second, "print interval")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	sym := strings.ToUpper(*symbol)

	rest := &gateway.MarketRESTClient{
		BaseURL:    cfg.Market.RESTURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Limiter:    gateway.NewTokenBucketLimiter(5, 10),
	}
	mux := feed.NewMux(feed.MuxConfig{
		Endpoint:    cfg.Market.WSURL,
		MaxRetries:  cfg.Stream.MaxRetries,
		BaseBackoff: cfg.Stream.BaseBackoff,
		MaxBackoff:  cfg.Stream.MaxBackoff,
		ReadTimeout: cfg.Stream.ReadTimeout,
	})
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	book := feed.NewBookFeed(sym, *depth, mux, rest, nil, nil, nil)
	book.Start(ctx)
	defer book.Stop()
	tape := feed.NewTapeFeed(sym, 10, mux, nil, nil, nil)
	tape.Start(ctx)
	defer tape.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			printBook(sym, book.View(), tape.Trades())
		}
	}
}

func printBook(symbol string, view feed.BookState, trades []market.Trade) {
	fmt.Printf("\n=== %s  mid=%s (%s)", symbol, market.FormatMid(view.Mid), view.Direction)
	if !view.Seeded {
		fmt.Print("  [snapshot pending]")
	}
	if view.LoadErr != nil {
		fmt.Printf("  [snapshot error: %v]", view.LoadErr)
	}
	fmt.Println()

	asks := market.FormatBook(view.Asks, 0)
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Printf("  ask %s  %s  %s\n", asks[i].Price, asks[i].Amount, asks[i].Total)
	}
	for _, row := range market.FormatBook(view.Bids, 0) {
		fmt.Printf("  bid %s  %s  %s\n", row.Price, row.Amount, row.Total)
	}

	if len(trades) > 0 {
		fmt.Println("  --- trades ---")
		for _, row := range market.FormatTape(trades) {
			side := "buy "
			if row.Sell {
				side = "sell"
			}
			fmt.Printf("  %s %s  %s  %s\n", row.Time, side, row.Price, row.Amount)
		}
	}
}
