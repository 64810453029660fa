package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"exchange-terminal-go/config"
	"exchange-terminal-go/feed"
	"exchange-terminal-go/gateway"
	"exchange-terminal-go/infrastructure/alert"
	"exchange-terminal-go/infrastructure/logger"
	"exchange-terminal-go/market"
	"exchange-terminal-go/monitor"
	"exchange-terminal-go/server"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	restRate := flag.Float64("restRate", 5, "REST 限流：每秒令牌数")
	restBurst := flag.Int("restBurst", 10, "REST 限流：最大突发令牌数")
	flag.Parse()

	_ = godotenv.Load() // 没有 .env 不算错

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logg.Close()

	mon := monitor.New(monitor.DefaultConfig())
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, mon, logg)
	}

	rest := &gateway.MarketRESTClient{
		BaseURL:    cfg.Market.RESTURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Limiter:    gateway.NewTokenBucketLimiter(*restRate, *restBurst),
	}

	alerts := alert.NewManager([]alert.Channel{
		alert.NewLoggerChannel(logg),
		alert.NewConsoleChannel(),
	}, time.Minute)

	mux := feed.NewMux(feed.MuxConfig{
		Endpoint:    cfg.Market.WSURL,
		MaxRetries:  cfg.Stream.MaxRetries,
		BaseBackoff: cfg.Stream.BaseBackoff,
		MaxBackoff:  cfg.Stream.MaxBackoff,
		ReadTimeout: cfg.Stream.ReadTimeout,
	})
	mux.OnState = func(topic string, st gateway.StreamState) {
		ch := topicChannel(topic)
		switch st {
		case gateway.StreamLive:
			mon.RecordStreamConnect(ch)
		case gateway.StreamReconnecting:
			mon.RecordStreamReconnect(ch)
			_ = alerts.Warning("stream reconnecting", map[string]interface{}{"topic": topic})
		case gateway.StreamFailed:
			mon.RecordStreamFailure(ch)
			_ = alerts.Critical("stream failed", map[string]interface{}{"topic": topic})
		case gateway.StreamClosed:
			mon.RecordStreamDisconnect(ch)
		}
		logg.LogStream("state_change", topic, map[string]interface{}{"state": string(st)})
	}

	pub := market.NewPublisher()
	mgr := feed.NewManager(feed.ManagerConfig{
		Symbols:       cfg.Symbols,
		Depth:         cfg.Market.Depth,
		TapeSize:      cfg.Market.TapeSize,
		KlineInterval: cfg.Market.KlineInterval,
		SeriesSize:    cfg.Market.SeriesSize,
	}, mux, rest, pub, logg, mon)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	// 配置热更新：目前只接管符号集变化
	go func() {
		w := config.Watcher{Path: *cfgPath, Cooldown: 2 * time.Second}
		err := w.Start(ctx, func(next config.AppConfig) {
			mgr.ApplySymbols(next.Symbols)
		})
		if err != nil && ctx.Err() == nil {
			logg.LogError(err, map[string]interface{}{"op": "config_watch"})
		}
	}()

	srv := server.New(cfg.Server, mgr, pub, logg, mon)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logg.LogFeed("shutdown_signal", "", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			logg.LogError(err, map[string]interface{}{"op": "http_serve"})
		}
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.LogError(err, map[string]interface{}{"op": "http_shutdown"})
	}
	mgr.Stop()
	logg.LogFeed("terminald_exit", "", nil)
}

func serveMetrics(addr string, mon *monitor.Monitor, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mon.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logg.LogError(err, map[string]interface{}{"op": "metrics_listen", "addr": addr})
	}
}

// topicChannel 从 btcusdt@kline_1m 这样的主题里取频道名。
func topicChannel(topic string) string {
	if i := strings.IndexByte(topic, '@'); i >= 0 {
		ch := topic[i+1:]
		if j := strings.IndexByte(ch, '_'); j >= 0 {
			ch = ch[:j]
		}
		return ch
	}
	return topic
}
