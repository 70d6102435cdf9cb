// サンプルのリスクイベントを登録するツール。
// 起動中のリスクイベントサービスにHTTP API経由でサンプルデータを投入する。
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/riskevent/pkg/httpclient"
	"github.com/nao1215/riskevent/pkg/riskclient"
	"go.uber.org/zap"
)

func main() {
	baseURL := getEnvOr("RISKEVENT_URL", "http://localhost:8080")

	zl, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	events, err := sampleEvents()
	if err != nil {
		zl.Fatal("サンプルデータの生成に失敗しました", zap.Error(err))
	}

	client := riskclient.New(baseURL, httpclient.WithTimeout(10*time.Second))
	runID := uuid.NewString()
	n, err := seed(ctx, client, events, runID, zl)
	if err != nil {
		zl.Fatal("サンプルデータの登録に失敗しました", zap.Int("registered", n), zap.String("run_id", runID), zap.Error(err))
	}
	zl.Info("サンプルデータを登録しました", zap.Int("count", n), zap.String("url", baseURL), zap.String("run_id", runID))
}

// getEnvOr は環境変数の値を取得し、未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
