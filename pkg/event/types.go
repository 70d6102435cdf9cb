// Package event はリスクイベントのドメインモデルを提供する。
package event

import (
	"encoding/json"
	"time"
)

// RiskLevel はリスクイベントの深刻度を表す分類ラベル。
// 値の集合は閉じておらず、下記の定数はあくまで慣例である。
type RiskLevel string

const (
	// RiskLevelLow は低リスクを表す。
	RiskLevelLow RiskLevel = "LOW"
	// RiskLevelMedium は中リスクを表す。
	RiskLevelMedium RiskLevel = "MEDIUM"
	// RiskLevelHigh は高リスクを表す。
	RiskLevelHigh RiskLevel = "HIGH"
	// RiskLevelCritical は重大リスクを表す。
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Type はリスクイベントの種類を表す。
type Type string

const (
	// TypeDataAccess は機密データへのアクセスを表す。
	TypeDataAccess Type = "DATA_ACCESS"
	// TypeFileDownload はファイルのダウンロードを表す。
	TypeFileDownload Type = "FILE_DOWNLOAD"
	// TypeDataExport はデータのエクスポートを表す。
	TypeDataExport Type = "DATA_EXPORT"
	// TypePrivilegedAction は特権操作を表す。
	TypePrivilegedAction Type = "PRIVILEGED_ACTION"
	// TypeLogin はログインを表す。
	TypeLogin Type = "LOGIN"
)

// RiskEvent は観測されたリスクの不変レコードを表す。
// 一度永続化されたイベントは更新も削除もされない。
type RiskEvent struct {
	// ID はEvent Storeが採番する一意識別子。永続化前は0。
	ID int64 `json:"id,omitempty"`
	// UserID はイベントを発生させたユーザーのID。
	UserID string `json:"userId"`
	// EventType はイベントの種類。
	EventType Type `json:"eventType"`
	// Timestamp はイベントの発生日時。並び順の唯一のキー。
	Timestamp time.Time `json:"timestamp"`
	// RiskScore はリスクスコア。未算出の場合はnull。
	RiskScore *float64 `json:"riskScore"`
	// RiskLevel はリスクの分類ラベル。完全一致でのみ絞り込みに使われる。
	RiskLevel RiskLevel `json:"riskLevel"`
	// SensitiveDataAccess は機密データへのアクセスを伴うかどうか。
	SensitiveDataAccess bool `json:"sensitiveDataAccess"`
	// UnusualTime は通常外の時間帯に発生したかどうか。
	UnusualTime bool `json:"unusualTime"`
	// LargeDataTransfer は大量データ転送を伴うかどうか。
	LargeDataTransfer bool `json:"largeDataTransfer"`
	// PrivilegedAction は特権操作を伴うかどうか。
	PrivilegedAction bool `json:"privilegedAction"`
	// Details はイベント固有の任意データ（JSON形式）。Event Storeは解釈しない。
	Details json.RawMessage `json:"details,omitempty"`
	// CreatedAt はEvent Storeがレコードを記録した日時。
	CreatedAt time.Time `json:"createdAt"`
}

// Persisted はイベントがEvent Storeに永続化済みかどうかを返す。
func (e RiskEvent) Persisted() bool {
	return e.ID != 0
}
