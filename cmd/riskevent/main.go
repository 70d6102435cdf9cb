// リスクイベントサービスのエントリポイント。
// リスクイベントをSQLiteのEvent Storeに記録し、HTTP APIで一覧・取得・登録を提供する。
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nao1215/riskevent/internal/config"
	"github.com/nao1215/riskevent/internal/eventstore"
	"github.com/nao1215/riskevent/internal/query"
	"github.com/nao1215/riskevent/pkg/logger"
	"github.com/nao1215/riskevent/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// カレントディレクトリの.envは任意。既に設定済みの環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf(".envの読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	zl, err := logger.New(logger.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("リスクイベントサービスが異常終了しました", zap.Error(err))
	}
	zl.Info("リスクイベントサービスを停止しました")
}

// run は依存関係を組み立ててサーバーを起動し、ctxがキャンセルされるまで待つ。
func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	m := metrics.New()

	store, err := eventstore.Open(ctx, cfg.DBPath,
		eventstore.WithLogger(zl.Named("eventstore")),
		eventstore.WithMetrics(m),
		eventstore.WithMaxLimit(cfg.MaxLimit),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			zl.Error("データベースのクローズに失敗しました", zap.Error(err))
		}
	}()

	server := query.NewServer(query.ServerParams{
		Addr:           cfg.Addr,
		Service:        query.NewService(store),
		Logger:         zl.Named("http"),
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
		DefaultLimit:   cfg.DefaultLimit,
		HealthCheck:    store.Ping,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run()
	})
	// シグナル受信またはサーバーの異常終了でシャットダウンする
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("シャットダウンを開始します", zap.Duration("timeout", cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	zl.Info("リスクイベントサービスを起動しました",
		zap.String("addr", cfg.Addr),
		zap.String("db_path", cfg.DBPath),
		zap.String("environment", cfg.Environment),
	)
	return g.Wait()
}
