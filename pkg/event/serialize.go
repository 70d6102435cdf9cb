package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// New は永続化前のリスクイベントを生成する。
// detailsにはイベント固有のデータ構造体を渡す。nilの場合Detailsは空のままになる。
func New(userID string, eventType Type, level RiskLevel, occurredAt time.Time, details any) (*RiskEvent, error) {
	ev := &RiskEvent{
		UserID:    userID,
		EventType: eventType,
		Timestamp: occurredAt.UTC(),
		RiskLevel: level,
	}
	if details == nil {
		return ev, nil
	}

	jsonData, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("イベント詳細のシリアライズに失敗: %w", err)
	}
	ev.Details = jsonData
	return ev, nil
}
