package db

import (
	"context"
	"database/sql"
)

const riskEventColumns = `id, user_id, event_type, timestamp_sec, timestamp_nsec, risk_score, risk_level,
    sensitive_data_access, unusual_time, large_data_transfer, privileged_action,
    details, created_at_sec, created_at_nsec`

// scanner は*sql.Rowと*sql.Rowsに共通するScanメソッド。
type scanner interface {
	Scan(dest ...any) error
}

func scanRiskEvent(row scanner) (RiskEvent, error) {
	var i RiskEvent
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.EventType,
		&i.TimestampSec,
		&i.TimestampNsec,
		&i.RiskScore,
		&i.RiskLevel,
		&i.SensitiveDataAccess,
		&i.UnusualTime,
		&i.LargeDataTransfer,
		&i.PrivilegedAction,
		&i.Details,
		&i.CreatedAtSec,
		&i.CreatedAtNsec,
	)
	return i, err
}

const insertRiskEvent = `INSERT INTO risk_events (
    user_id, event_type, timestamp_sec, timestamp_nsec, risk_score, risk_level,
    sensitive_data_access, unusual_time, large_data_transfer, privileged_action,
    details, created_at_sec, created_at_nsec
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + riskEventColumns

// InsertRiskEventParams はInsertRiskEventの引数。
type InsertRiskEventParams struct {
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

// InsertRiskEvent はリスクイベントを1件挿入し、採番されたIDを含む行を返す。
func (q *Queries) InsertRiskEvent(ctx context.Context, arg InsertRiskEventParams) (RiskEvent, error) {
	row := q.db.QueryRowContext(ctx, insertRiskEvent,
		arg.UserID,
		arg.EventType,
		arg.TimestampSec,
		arg.TimestampNsec,
		arg.RiskScore,
		arg.RiskLevel,
		arg.SensitiveDataAccess,
		arg.UnusualTime,
		arg.LargeDataTransfer,
		arg.PrivilegedAction,
		arg.Details,
		arg.CreatedAtSec,
		arg.CreatedAtNsec,
	)
	return scanRiskEvent(row)
}

const getRiskEvent = `SELECT ` + riskEventColumns + `
FROM risk_events
WHERE id = ?`

// GetRiskEvent はIDでリスクイベントを1件取得する。
// 該当行がない場合はsql.ErrNoRowsを返す。
func (q *Queries) GetRiskEvent(ctx context.Context, id int64) (RiskEvent, error) {
	row := q.db.QueryRowContext(ctx, getRiskEvent, id)
	return scanRiskEvent(row)
}

// ?1が空文字列の場合は絞り込みを行わない。
const listRecentRiskEvents = `SELECT ` + riskEventColumns + `
FROM risk_events
WHERE (?1 = '' OR risk_level = ?1)
ORDER BY timestamp_sec DESC, timestamp_nsec DESC, id DESC
LIMIT ?2`

// ListRecentRiskEventsParams はListRecentRiskEventsの引数。
type ListRecentRiskEventsParams struct {
	// RiskLevel は完全一致で絞り込むリスクレベル。空文字列の場合は全件が対象。
	RiskLevel string
	// Limit は返す最大件数。
	Limit int64
}

// ListRecentRiskEvents は発生日時の降順でリスクイベントを取得する。
func (q *Queries) ListRecentRiskEvents(ctx context.Context, arg ListRecentRiskEventsParams) ([]RiskEvent, error) {
	rows, err := q.db.QueryContext(ctx, listRecentRiskEvents, arg.RiskLevel, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []RiskEvent
	for rows.Next() {
		i, err := scanRiskEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
