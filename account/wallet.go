package account

import (
	"context"

	"github.com/shopspring/decimal"

	"exchange-terminal-go/infrastructure/logger"
)

// WalletType 子钱包类型，与服务端枚举一致。
type WalletType string

const (
	WalletSpot       WalletType = "Spot"
	WalletMargin     WalletType = "Margin"
	WalletFutures    WalletType = "Futures"
	WalletFunding    WalletType = "Funding"
	WalletThirdParty WalletType = "ThirdParty"
)

// Balance 单币种余额；金额用 decimal 避免浮点误差。
type Balance struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Locked   decimal.Decimal `json:"locked"`
}

// Wallet 一个子钱包下的全部余额。
type Wallet struct {
	Type     WalletType `json:"type"`
	Balances []Balance  `json:"balances"`
}

// Overview 全部子钱包与按美元折算的总市值。
type Overview struct {
	Wallets       []Wallet        `json:"wallets"`
	TotalValueUSD decimal.Decimal `json:"totalValueUSD"`
}

// WalletService 钱包读写。全部请求要求已登录（Bearer 凭证）。
type WalletService struct {
	gql *GraphQLClient
	log *logger.Logger
}

func NewWalletService(gql *GraphQLClient, log *logger.Logger) *WalletService {
	return &WalletService{gql: gql, log: log}
}

const depositMutation = `
mutation Deposit($currency: String!, $amount: Float!) {
  deposit(currency: $currency, amount: $amount) {
    currency
    balance
    locked
  }
}`

const transferMutation = `
mutation Transfer($fromType: WalletType!, $toType: WalletType!, $currency: String!, $amount: Float!) {
  transfer(fromType: $fromType, toType: $toType, currency: $currency, amount: $amount)
}`

const walletBalanceQuery = `
query GetBalance($type: WalletType!, $currency: String!) {
  walletBalance(type: $type, currency: $currency) {
    balance
  }
}`

const walletByTypeQuery = `
query WalletByType($type: WalletType!) {
  walletByType(type: $type) {
    type
    balances {
      currency
      balance
    }
  }
}`

const walletsOverviewQuery = `
query Wallets {
  walletsOverview {
    wallets {
      type
      balances {
        currency
        balance
      }
    }
    totalValueUSD
  }
}`

const depositAddressQuery = `
query DepositAddress($currency: String!) {
  depositAddress(currency: $currency)
}`

// Deposit 充值；余额校验（金额为正等）由服务端做，业务错误原样上抛。
func (w *WalletService) Deposit(ctx context.Context, currency string, amount decimal.Decimal) (Balance, error) {
	var out struct {
		Deposit Balance `json:"deposit"`
	}
	vars := map[string]interface{}{
		"currency": currency,
		"amount":   amount.InexactFloat64(), // 服务端 schema 是 Float
	}
	if err := w.gql.Do(ctx, depositMutation, vars, &out); err != nil {
		return Balance{}, err
	}
	if w.log != nil {
		w.log.LogFeed("wallet_deposit", currency, map[string]interface{}{"amount": amount.String()})
	}
	return out.Deposit, nil
}

// Transfer 子钱包间划转，返回服务端确认结果。
func (w *WalletService) Transfer(ctx context.Context, from, to WalletType, currency string, amount decimal.Decimal) (bool, error) {
	var out struct {
		Transfer bool `json:"transfer"`
	}
	vars := map[string]interface{}{
		"fromType": string(from),
		"toType":   string(to),
		"currency": currency,
		"amount":   amount.InexactFloat64(),
	}
	if err := w.gql.Do(ctx, transferMutation, vars, &out); err != nil {
		return false, err
	}
	if w.log != nil {
		w.log.LogFeed("wallet_transfer", currency, map[string]interface{}{
			"from":   string(from),
			"to":     string(to),
			"amount": amount.String(),
		})
	}
	return out.Transfer, nil
}

// WalletBalance 查询单个子钱包里某币种的可用余额。
func (w *WalletService) WalletBalance(ctx context.Context, typ WalletType, currency string) (decimal.Decimal, error) {
	var out struct {
		WalletBalance struct {
			Balance decimal.Decimal `json:"balance"`
		} `json:"walletBalance"`
	}
	vars := map[string]interface{}{"type": string(typ), "currency": currency}
	if err := w.gql.Do(ctx, walletBalanceQuery, vars, &out); err != nil {
		return decimal.Zero, err
	}
	return out.WalletBalance.Balance, nil
}

// WalletByType 查询一个子钱包的全部余额。
func (w *WalletService) WalletByType(ctx context.Context, typ WalletType) (Wallet, error) {
	var out struct {
		WalletByType Wallet `json:"walletByType"`
	}
	vars := map[string]interface{}{"type": string(typ)}
	if err := w.gql.Do(ctx, walletByTypeQuery, vars, &out); err != nil {
		return Wallet{}, err
	}
	return out.WalletByType, nil
}

// WalletsOverview 查询全部子钱包与美元总市值。
func (w *WalletService) WalletsOverview(ctx context.Context) (Overview, error) {
	var out struct {
		WalletsOverview Overview `json:"walletsOverview"`
	}
	if err := w.gql.Do(ctx, walletsOverviewQuery, nil, &out); err != nil {
		return Overview{}, err
	}
	return out.WalletsOverview, nil
}

// DepositAddress 查询币种的充值地址。
func (w *WalletService) DepositAddress(ctx context.Context, currency string) (string, error) {
	var out struct {
		DepositAddress string `json:"depositAddress"`
	}
	vars := map[string]interface{}{"currency": currency}
	if err := w.gql.Do(ctx, depositAddressQuery, vars, &out); err != nil {
		return "", err
	}
	return out.DepositAddress, nil
}
