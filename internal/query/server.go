package query

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/riskevent/internal/eventstore"
	"github.com/nao1215/riskevent/pkg/event"
	"github.com/nao1215/riskevent/pkg/metrics"
	"github.com/nao1215/riskevent/pkg/middleware"
	"go.uber.org/zap"
)

// serviceName はヘルスチェックで返すサービス名。
const serviceName = "riskevent"

// ServerParams はNewServerに渡す依存関係と設定。
type ServerParams struct {
	// Addr はリッスンアドレス（例: ":8080"）。
	Addr string
	// Service はリクエストを処理するQuery Service。
	Service *Service
	// Logger は構造化ロガー。nilの場合はログを出力しない。
	Logger *zap.Logger
	// Metrics はHTTPメトリクスの記録先。nilの場合は/metricsを公開しない。
	Metrics *metrics.Metrics
	// AllowedOrigins はCORSで許可するオリジン。"*"ですべて許可する。
	AllowedOrigins []string
	// DefaultLimit はlimit省略時の件数。0以下の場合はDefaultListLimitを使う。
	DefaultLimit int
	// HealthCheck はヘルスチェック時に呼ばれる。nilの場合は常に正常とする。
	HealthCheck func(ctx context.Context) error
}

// Server はリスクイベントQuery ServiceのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はrouterを公開するHTTPサーバー。
	httpServer *http.Server
	// service はリクエストを処理するQuery Service。
	service *Service
	// logger は構造化ロガー。
	logger *zap.Logger
	// metrics はHTTPメトリクスの記録先。
	metrics *metrics.Metrics
	// defaultLimit はlimit省略時の件数。
	defaultLimit int
	// healthCheck はヘルスチェック関数。
	healthCheck func(ctx context.Context) error
}

// NewServer は新しいQuery Serviceサーバーを生成する。
func NewServer(p ServerParams) *Server {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultLimit := p.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultListLimit
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Metrics(p.Metrics))
	router.Use(middleware.CORS(p.AllowedOrigins))

	s := &Server{
		router:       router,
		service:      p.Service,
		logger:       logger,
		metrics:      p.Metrics,
		defaultLimit: defaultLimit,
		healthCheck:  p.HealthCheck,
	}
	s.httpServer = &http.Server{
		Addr:              p.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()
	return s
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。Shutdownで停止された場合はnilを返す。
func (s *Server) Run() error {
	s.logger.Info("HTTPサーバーを起動します", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストの完了を待ってサーバーを停止する。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		events := api.Group("/events")
		{
			// リスクイベント一覧取得
			events.GET("", s.handleList())
			// リスクイベント詳細取得
			events.GET("/:id", s.handleGetByID())
			// リスクイベント登録
			events.POST("", s.handleCreate())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// handleList はリスクイベント一覧を取得するハンドラーを返す。
// クエリパラメータlimitで件数、riskLevelでリスクレベルを指定できる。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := s.defaultLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limitは整数で指定してください"})
				return
			}
			limit = n
		}
		riskLevel := event.RiskLevel(c.Query("riskLevel"))

		events, err := s.service.ListEvents(c.Request.Context(), limit, riskLevel)
		if err != nil {
			s.internalError(c, "リスクイベント一覧の取得に失敗しました", err)
			return
		}

		c.JSON(http.StatusOK, events)
	}
}

// handleGetByID はIDを指定してリスクイベントを取得するハンドラーを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "IDは整数で指定してください"})
			return
		}

		ev, found, err := s.service.GetEvent(c.Request.Context(), id)
		if err != nil {
			s.internalError(c, "リスクイベントの取得に失敗しました", err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "リスクイベントが見つかりません"})
			return
		}

		c.JSON(http.StatusOK, ev)
	}
}

// handleCreate はリスクイベントを登録するハンドラーを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: " + err.Error()})
			return
		}
		// time.Timeはbindingのrequiredで検出できないため個別に確認する
		if req.Timestamp.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestampは必須です"})
			return
		}

		created, err := s.service.CreateEvent(c.Request.Context(), req.toEvent())
		if errors.Is(err, eventstore.ErrInvalidEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			s.internalError(c, "リスクイベントの登録に失敗しました", err)
			return
		}

		s.metrics.RecordEventCreated(string(created.RiskLevel))
		c.JSON(http.StatusOK, created)
	}
}

// handleHealth はヘルスチェックのハンドラーを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.healthCheck != nil {
			if err := s.healthCheck(c.Request.Context()); err != nil {
				s.logger.Warn("ヘルスチェックに失敗しました", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": serviceName})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	}
}

// internalError はエラーをログに出力し、500レスポンスを返す。
// 内部エラーの詳細はクライアントに返さない。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg,
		zap.Error(err),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
