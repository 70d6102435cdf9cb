package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/riskevent/pkg/event"
)

// timestampLayouts は受け付ける発生日時の書式。
// タイムゾーンを持たない書式はUTCとして解釈し、オフセット付きの書式は同じ時刻のUTCに正規化する。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// eventTime はタイムゾーン省略形式も受け付ける発生日時。
type eventTime struct {
	time.Time
}

// UnmarshalJSON はJSON文字列を発生日時として解釈する。nullはゼロ値とする。
func (t *eventTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestampは文字列で指定してください: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestampの形式が不正です: %q", s)
}

// createEventRequest はリスクイベント登録リクエストのJSON構造。
// idはEvent Storeが採番するため受け取らない。
type createEventRequest struct {
	// UserID はイベントを発生させたユーザーのID。
	UserID string `json:"userId" binding:"required"`
	// EventType はイベントの種類。
	EventType string `json:"eventType" binding:"required"`
	// Timestamp はイベントの発生日時。
	Timestamp eventTime `json:"timestamp"`
	// RiskScore はリスクスコア。
	RiskScore *float64 `json:"riskScore"`
	// RiskLevel はリスクの分類ラベル。
	RiskLevel string `json:"riskLevel"`
	// SensitiveDataAccess は機密データへのアクセスを伴うかどうか。
	SensitiveDataAccess bool `json:"sensitiveDataAccess"`
	// UnusualTime は通常外の時間帯に発生したかどうか。
	UnusualTime bool `json:"unusualTime"`
	// LargeDataTransfer は大量データ転送を伴うかどうか。
	LargeDataTransfer bool `json:"largeDataTransfer"`
	// PrivilegedAction は特権操作を伴うかどうか。
	PrivilegedAction bool `json:"privilegedAction"`
	// Details はイベント固有の任意データ。
	Details json.RawMessage `json:"details"`
}

// toEvent はリクエストをドメインモデルに変換する。
func (r createEventRequest) toEvent() event.RiskEvent {
	ev := event.RiskEvent{
		UserID:              r.UserID,
		EventType:           event.Type(r.EventType),
		Timestamp:           r.Timestamp.Time,
		RiskScore:           r.RiskScore,
		RiskLevel:           event.RiskLevel(r.RiskLevel),
		SensitiveDataAccess: r.SensitiveDataAccess,
		UnusualTime:         r.UnusualTime,
		LargeDataTransfer:   r.LargeDataTransfer,
		PrivilegedAction:    r.PrivilegedAction,
	}
	if len(r.Details) > 0 && !bytes.Equal(bytes.TrimSpace(r.Details), []byte("null")) {
		ev.Details = r.Details
	}
	return ev
}
