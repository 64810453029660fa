package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"exchange-terminal-go/feed"
	"exchange-terminal-go/infrastructure/logger"
	"exchange-terminal-go/market"
	"exchange-terminal-go/monitor"
)

// FeedView 行情读取面；*feed.Manager 直接满足。
type FeedView interface {
	Book(symbol string) (feed.BookState, bool)
	Tape(symbol string) ([]market.Trade, bool)
	Klines(symbol string) ([]market.Candle, bool)
	Tickers() []market.TickerSample
	Statuses() []feed.Status
}

// Config HTTP 服务配置。
type Config struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Server 对终端前端暴露行情读取 API 与 WebSocket 推送。
type Server struct {
	cfg  Config
	view FeedView
	hub  *Hub
	log  *logger.Logger

	http *http.Server
}

func New(cfg Config, view FeedView, pub *market.Publisher, log *logger.Logger, mon *monitor.Monitor) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:  cfg,
		view: view,
		hub:  NewHub(pub, log, mon),
		log:  log,
	}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router 组装全部路由。
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/book/{symbol}", s.handleBook).Methods(http.MethodGet)
	api.HandleFunc("/tape/{symbol}", s.handleTape).Methods(http.MethodGet)
	api.HandleFunc("/klines/{symbol}", s.handleKlines).Methods(http.MethodGet)
	api.HandleFunc("/tickers", s.handleTickers).Methods(http.MethodGet)
	api.HandleFunc("/feeds", s.handleFeeds).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.handleWS)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

// Start 启动 HTTP 监听与推送循环；阻塞到监听退出。
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	if s.log != nil {
		s.log.LogFeed("http_listen", "", map[string]interface{}{"addr": s.cfg.Addr})
	}
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown 优雅停机。
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.http.Shutdown(ctx)
}

// bookResponse 盘口视图的渲染结果。
type bookResponse struct {
	Symbol    string           `json:"symbol"`
	Bids      []market.BookRow `json:"bids"`
	Asks      []market.BookRow `json:"asks"`
	Mid       string           `json:"mid"`
	Direction string           `json:"direction"`
	Seeded    bool             `json:"seeded"`
	Error     string           `json:"error,omitempty"`
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	view, ok := s.view.Book(symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, "symbol not tracked: "+symbol)
		return
	}
	resp := bookResponse{
		Symbol:    view.Symbol,
		Bids:      market.FormatBook(view.Bids, 0),
		Asks:      market.FormatBook(view.Asks, 0),
		Mid:       market.FormatMid(view.Mid),
		Direction: view.Direction.String(),
		Seeded:    view.Seeded,
	}
	if view.LoadErr != nil {
		resp.Error = view.LoadErr.Error()
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleTape(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	trades, ok := s.view.Tape(symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, "symbol not tracked: "+symbol)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"symbol": symbol,
		"trades": market.FormatTape(trades),
	})
}

func (s *Server) handleKlines(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	candles, ok := s.view.Klines(symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, "symbol not tracked: "+symbol)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"symbol":  symbol,
		"candles": candles,
	})
}

func (s *Server) handleTickers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{"tickers": s.view.Tickers()})
}

func (s *Server) handleFeeds(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{"feeds": s.view.Statuses()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil && s.log != nil {
		s.log.LogError(err, map[string]interface{}{"op": "write_response"})
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
