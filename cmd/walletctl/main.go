package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"exchange-terminal-go/account"
	"exchange-terminal-go/config"
)

// walletctl 钱包运维小工具：登录后查总览/余额/充值地址，或发起充值与划转。
//
// 用法：
//
//	walletctl -op overview
//	walletctl -op balance -type Spot -currency USDT
//	walletctl -op address -currency BTC
//	walletctl -op deposit -currency USDT -amount 100.5
//	walletctl -op transfer -from Spot -to Funding -currency BTC -amount 0.1
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to config file")
	op := flag.String("op", "overview", "overview | balance | address | deposit | transfer")
	walletType := flag.String("type", "Spot", "wallet type for balance query")
	from := flag.String("from", "Spot", "transfer source wallet")
	to := flag.String("to", "Funding", "transfer destination wallet")
	currency := flag.String("currency", "USDT", "currency code")
	amountStr := flag.String("amount", "0", "amount for deposit/transfer")
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

	gql := account.NewGraphQLClient(cfg.Account.WalletURL, nil)
	auth := account.NewAuthService(gql, nil)
	sess, err := auth.Login(ctx, account.LoginInput{
		Email:     email,
		Password:  password,
		TwoFACode: os.Getenv("TERMINAL_2FA_CODE"),
	})
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Printf("logged in as %s\n", sess.User.Username)

	wallet := account.NewWalletService(gql, nil)
	switch *op {
	case "overview":
		ov, err := wallet.WalletsOverview(ctx)
		if err != nil {
			log.Fatalf("overview: %v", err)
		}
		for _, w := range ov.Wallets {
			fmt.Printf("%s:\n", w.Type)
			for _, b := range w.Balances {
				fmt.Printf("  %-8s %s\n", b.Currency, b.Balance.String())
			}
		}
		fmt.Printf("total ≈ %s USD\n", ov.TotalValueUSD.String())
	case "balance":
		bal, err := wallet.WalletBalance(ctx, account.WalletType(*walletType), *currency)
		if err != nil {
			log.Fatalf("balance: %v", err)
		}
		fmt.Printf("%s/%s: %s\n", *walletType, *currency, bal.String())
	case "address":
		addr, err := wallet.DepositAddress(ctx, *currency)
		if err != nil {
			log.Fatalf("deposit address: %v", err)
		}
		fmt.Printf("%s deposit address: %s\n", *currency, addr)
	case "deposit":
		amount, err := decimal.NewFromString(*amountStr)
		if err != nil {
			log.Fatalf("bad amount %q: %v", *amountStr, err)
		}
		bal, err := wallet.Deposit(ctx, *currency, amount)
		if err != nil {
			log.Fatalf("deposit: %v", err)
		}
		fmt.Printf("deposited %s %s, new balance %s\n", amount.String(), *currency, bal.Balance.String())
	case "transfer":
		amount, err := decimal.NewFromString(*amountStr)
		if err != nil {
			log.Fatalf("bad amount %q: %v", *amountStr, err)
		}
		ok, err := wallet.Transfer(ctx, account.WalletType(*from), account.WalletType(*to), *currency, amount)
		if err != nil {
			log.Fatalf("transfer: %v", err)
		}
		fmt.Printf("transfer %s %s %s -> %s: ok=%v\n", amount.String(), *currency, *from, *to, ok)
	default:
		log.Fatalf("unknown op %q", *op)
	}
}
