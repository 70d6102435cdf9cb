package db

import "database/sql"

// RiskEvent はrisk_eventsテーブルの1行を表す。
type RiskEvent struct {
	ID                  int64
	UserID              string
	EventType           string
	TimestampSec        int64
	TimestampNsec       int64
	RiskScore           sql.NullFloat64
	RiskLevel           string
	SensitiveDataAccess bool
	UnusualTime         bool
	LargeDataTransfer   bool
	PrivilegedAction    bool
	Details             sql.NullString
	CreatedAtSec        int64
	CreatedAtNsec       int64
}
