package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMarketRESTClientDepth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/depth" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "BTCUSDT" || r.URL.Query().Get("limit") != "10" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{
			"lastUpdateId": 42,
			"bids": [["100.1","1.2"],["100.0","2"]],
			"asks": [["100.2","1.1"]]
		}`)
	}))
	defer ts.Close()

	cli := &MarketRESTClient{BaseURL: ts.URL, HTTPClient: ts.Client()}
	snap, err := cli.Depth(context.Background(), "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("depth err: %v", err)
	}
	if snap.LastUpdateID != 42 {
		t.Fatalf("unexpected lastUpdateId %d", snap.LastUpdateID)
	}
	if len(snap.Bids) != 2 || snap.Bids[0].Price != 100.1 || snap.Bids[1].Qty != 2 {
		t.Fatalf("unexpected bids %+v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 100.2 {
		t.Fatalf("unexpected asks %+v", snap.Asks)
	}
}

func TestMarketRESTClientDepthErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	cli := &MarketRESTClient{BaseURL: ts.URL, HTTPClient: ts.Client()}
	if _, err := cli.Depth(context.Background(), "BTCUSDT", 10); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestMarketRESTClientKlines(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1m" {
			t.Fatalf("unexpected interval %s", r.URL.Query().Get("interval"))
		}
		io.WriteString(w, `[
			[1700000000000, "100", "110", "95", "105", "12.5", 1700000059999],
			[1700000060000, "105", "106", "104", "104.5", "3.1", 1700000119999]
		]`)
	}))
	defer ts.Close()

	cli := &MarketRESTClient{BaseURL: ts.URL, HTTPClient: ts.Client()}
	candles, err := cli.Klines(context.Background(), "BTCUSDT", "1m", 2)
	if err != nil {
		t.Fatalf("klines err: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles got %d", len(candles))
	}
	if candles[0].OpenTime != 1700000000000 || candles[0].Low != 95 {
		t.Fatalf("unexpected candle %+v", candles[0])
	}
	if candles[1].Close != 104.5 {
		t.Fatalf("unexpected close %f", candles[1].Close)
	}
}
