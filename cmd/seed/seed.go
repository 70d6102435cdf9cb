package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/riskevent/pkg/event"
	"github.com/nao1215/riskevent/pkg/httpclient"
	"go.uber.org/zap"
)

// creator はリスクイベントを登録できる送信先。
type creator interface {
	Create(ctx context.Context, ev event.RiskEvent) (event.RiskEvent, error)
}

// sample はサンプルデータ1件分の定義。
type sample struct {
	userID     string
	eventType  event.Type
	occurredAt string
	score      float64
	level      event.RiskLevel
	flags      [4]bool
}

// samples はサンプルデータ。flagsは機密データアクセス、通常外時間帯、大量転送、特権操作の順。
var samples = []sample{
	{"user001", event.TypeDataAccess, "2024-01-15 10:30:00", 30.0, event.RiskLevelLow, [4]bool{true, false, false, false}},
	{"user002", event.TypeFileDownload, "2024-01-15 14:20:00", 70.0, event.RiskLevelHigh, [4]bool{true, false, true, false}},
	{"user003", event.TypePrivilegedAction, "2024-01-15 22:15:00", 65.0, event.RiskLevelMedium, [4]bool{false, true, false, true}},
	{"user001", event.TypeDataExport, "2024-01-16 09:45:00", 85.0, event.RiskLevelHigh, [4]bool{true, false, true, true}},
	{"user004", event.TypeLogin, "2024-01-16 11:20:00", 20.0, event.RiskLevelLow, [4]bool{false, false, false, false}},
}

// sampleEvents はサンプルデータをリスクイベントに変換する。
func sampleEvents() ([]event.RiskEvent, error) {
	events := make([]event.RiskEvent, 0, len(samples))
	for _, s := range samples {
		occurredAt, err := time.ParseInLocation(time.DateTime, s.occurredAt, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("サンプルデータ(user=%s)の日時が不正です: %w", s.userID, err)
		}
		ev, err := event.New(s.userID, s.eventType, s.level, occurredAt, nil)
		if err != nil {
			return nil, err
		}
		score := s.score
		ev.RiskScore = &score
		ev.SensitiveDataAccess = s.flags[0]
		ev.UnusualTime = s.flags[1]
		ev.LargeDataTransfer = s.flags[2]
		ev.PrivilegedAction = s.flags[3]
		events = append(events, *ev)
	}
	return events, nil
}

// seed はeventsを順に登録し、登録できた件数を返す。
// 各リクエストには runID-連番 のリクエストIDを付与する。
// 途中で失敗した場合はそこで中断する。
func seed(ctx context.Context, c creator, events []event.RiskEvent, runID string, zl *zap.Logger) (int, error) {
	for i, ev := range events {
		requestID := fmt.Sprintf("%s-%d", runID, i+1)
		created, err := c.Create(httpclient.WithRequestID(ctx, requestID), ev)
		if err != nil {
			return i, fmt.Errorf("%d件目(user=%s, request_id=%s)の登録に失敗: %w", i+1, ev.UserID, requestID, err)
		}
		if !created.Persisted() {
			return i, fmt.Errorf("%d件目(user=%s)にIDが採番されていません", i+1, ev.UserID)
		}
		zl.Debug("リスクイベントを登録しました",
			zap.Int64("id", created.ID),
			zap.String("request_id", requestID),
			zap.String("user_id", created.UserID),
			zap.String("risk_level", string(created.RiskLevel)),
		)
	}
	return len(events), nil
}
