package market

import (
	"fmt"
	"time"
)

// BookRow 格式化后的盘口行：价格两位小数，数量六位，金额两位。
type BookRow struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
	Total  string `json:"total"`
}

// FormatBook 将档位渲染为展示行，最多 max 行。
func FormatBook(levels []PriceLevel, max int) []BookRow {
	if max > 0 && len(levels) > max {
		levels = levels[:max]
	}
	rows := make([]BookRow, len(levels))
	for i, lv := range levels {
		rows[i] = BookRow{
			Price:  fmt.Sprintf("%.2f", lv.Price),
			Amount: fmt.Sprintf("%.6f", lv.Qty),
			Total:  fmt.Sprintf("%.2f", lv.Price*lv.Qty),
		}
	}
	return rows
}

// TapeRow 格式化后的成交行。Sell 表示买方为 maker（即主动卖出）。
type TapeRow struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
	Time   string `json:"time"`
	Sell   bool   `json:"sell"`
}

// FormatTape 将成交渲染为展示行，保持最新在前。
func FormatTape(trades []Trade) []TapeRow {
	rows := make([]TapeRow, len(trades))
	for i, tr := range trades {
		rows[i] = TapeRow{
			Price:  fmt.Sprintf("%.2f", tr.Price),
			Amount: fmt.Sprintf("%.6f", tr.Qty),
			Time:   formatClock(tr.Time),
			Sell:   tr.IsBuyerMaker,
		}
	}
	return rows
}

// FormatMid 按展示精度渲染中间价。
func FormatMid(mid float64) string {
	return fmt.Sprintf("%.2f", mid)
}

func formatClock(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("15:04:05")
}
