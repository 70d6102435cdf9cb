package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	storedb "github.com/nao1215/riskevent/internal/eventstore/db"
	"github.com/nao1215/riskevent/pkg/event"
	"github.com/nao1215/riskevent/pkg/metrics"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// MemoryPath はインメモリデータベースを指すパス。
const MemoryPath = ":memory:"

// Store はSQLiteをバックエンドとするリスクイベントのEvent Store。
// 複数のゴルーチンから同時に利用できる。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はrisk_eventsテーブルへのクエリ実行オブジェクト。
	queries *storedb.Queries
	// logger は構造化ロガー。
	logger *zap.Logger
	// metrics は操作時間の記録先。nilの場合は記録しない。
	metrics *metrics.Metrics
	// maxLimit はQueryRecentが一度に返す件数の上限。
	maxLimit int
	// now はレコードの記録日時を返す関数。
	now func() time.Time
}

// Query はQueryRecentの検索条件。
type Query struct {
	// Limit は返す最大件数。
	Limit int
	// RiskLevel は完全一致で絞り込むリスクレベル。空の場合は絞り込まない。
	RiskLevel event.RiskLevel
}

// DSN はmodernc.org/sqlite向けの接続文字列を組み立てる。
// ファイルの場合はWALモードとビジータイムアウトを有効にする。
func DSN(path string) string {
	if path == MemoryPath {
		return MemoryPath
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}

// Open はpathのSQLiteデータベースを開き、スキーマを適用したStoreを返す。
// 親ディレクトリが存在しない場合は作成する。
// pathにMemoryPathを指定するとプロセス内でのみ有効なデータベースになる。
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("データベースディレクトリの作成に失敗: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// インメモリDBは接続ごとに別物になるため1接続に固定する
	if path == MemoryPath {
		sqlDB.SetMaxOpenConns(1)
	}

	s, err := New(ctx, sqlDB, opts...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New は開かれたデータベース接続にスキーマを適用し、Storeを返す。
func New(ctx context.Context, sqlDB *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:       sqlDB,
		queries:  storedb.New(sqlDB),
		logger:   zap.NewNop(),
		maxLimit: DefaultMaxLimit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := initSchema(ctx, sqlDB, s.logger); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return s, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping はデータベースに到達できるかを確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// MaxLimit はQueryRecentが一度に返す件数の上限を返す。
func (s *Store) MaxLimit() int {
	return s.maxLimit
}

// Append はイベントに新しいIDを採番して永続化し、IDを含む完全なレコードを返す。
// 呼び出し側が設定したIDとCreatedAtは無視する。
// 発生日時が未設定、またはDetailsが不正なJSONの場合はErrInvalidEventを返す。
func (s *Store) Append(ctx context.Context, ev event.RiskEvent) (event.RiskEvent, error) {
	if ev.Timestamp.IsZero() {
		return event.RiskEvent{}, fmt.Errorf("%w: timestampが設定されていません", ErrInvalidEvent)
	}
	if len(ev.Details) > 0 && !json.Valid(ev.Details) {
		return event.RiskEvent{}, fmt.Errorf("%w: detailsが不正なJSONです", ErrInvalidEvent)
	}

	start := time.Now()
	row, err := s.queries.InsertRiskEvent(ctx, toInsertParams(ev, s.now()))
	s.metrics.ObserveStoreOperation("append", time.Since(start), err)
	if err != nil {
		return event.RiskEvent{}, fmt.Errorf("リスクイベントの追記に失敗: %w", err)
	}

	s.logger.Debug("リスクイベントを追記しました",
		zap.Int64("id", row.ID),
		zap.String("risk_level", row.RiskLevel),
	)
	return toRiskEvent(row), nil
}

// FetchByID はIDに一致するイベントを返す。
// 該当するイベントがない場合はfalseを返し、エラーにはしない。
func (s *Store) FetchByID(ctx context.Context, id int64) (event.RiskEvent, bool, error) {
	start := time.Now()
	row, err := s.queries.GetRiskEvent(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.ObserveStoreOperation("fetch_by_id", time.Since(start), nil)
		return event.RiskEvent{}, false, nil
	}
	s.metrics.ObserveStoreOperation("fetch_by_id", time.Since(start), err)
	if err != nil {
		return event.RiskEvent{}, false, fmt.Errorf("リスクイベント(id=%d)の取得に失敗: %w", id, err)
	}
	return toRiskEvent(row), true, nil
}

// QueryRecent は発生日時の降順で最大q.Limit件のイベントを返す。
// q.RiskLevelが指定された場合は、件数制限の前に完全一致で絞り込む。
// 発生日時が同じイベント同士の順序は保証しない。
//
// q.Limitが0以下の場合は空のスライスを返し、上限を超える場合は上限に切り詰める。
func (s *Store) QueryRecent(ctx context.Context, q Query) ([]event.RiskEvent, error) {
	limit := s.boundLimit(q.Limit)
	if limit == 0 {
		return []event.RiskEvent{}, nil
	}

	start := time.Now()
	rows, err := s.queries.ListRecentRiskEvents(ctx, storedb.ListRecentRiskEventsParams{
		RiskLevel: string(q.RiskLevel),
		Limit:     int64(limit),
	})
	s.metrics.ObserveStoreOperation("query_recent", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("リスクイベント一覧の取得に失敗: %w", err)
	}

	events := make([]event.RiskEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, toRiskEvent(row))
	}
	return events, nil
}

// boundLimit は要求された件数を[0, maxLimit]の範囲に収める。
func (s *Store) boundLimit(limit int) int {
	switch {
	case limit <= 0:
		return 0
	case limit > s.maxLimit:
		s.logger.Debug("要求件数を上限に切り詰めました",
			zap.Int("requested", limit),
			zap.Int("max", s.maxLimit),
		)
		return s.maxLimit
	default:
		return limit
	}
}

// toInsertParams はイベントを挿入用のパラメータに変換する。
// 日時はUnixNanoで表せない範囲も扱えるよう秒とナノ秒に分けて保持する。
func toInsertParams(ev event.RiskEvent, recordedAt time.Time) storedb.InsertRiskEventParams {
	p := storedb.InsertRiskEventParams{
		UserID:              ev.UserID,
		EventType:           string(ev.EventType),
		TimestampSec:        ev.Timestamp.Unix(),
		TimestampNsec:       int64(ev.Timestamp.Nanosecond()),
		RiskLevel:           string(ev.RiskLevel),
		SensitiveDataAccess: ev.SensitiveDataAccess,
		UnusualTime:         ev.UnusualTime,
		LargeDataTransfer:   ev.LargeDataTransfer,
		PrivilegedAction:    ev.PrivilegedAction,
		CreatedAtSec:        recordedAt.Unix(),
		CreatedAtNsec:       int64(recordedAt.Nanosecond()),
	}
	if ev.RiskScore != nil {
		p.RiskScore = sql.NullFloat64{Float64: *ev.RiskScore, Valid: true}
	}
	if len(ev.Details) > 0 {
		p.Details = sql.NullString{String: string(ev.Details), Valid: true}
	}
	return p
}

// toRiskEvent はDB行をドメインモデルに変換する。
func toRiskEvent(row storedb.RiskEvent) event.RiskEvent {
	ev := event.RiskEvent{
		ID:                  row.ID,
		UserID:              row.UserID,
		EventType:           event.Type(row.EventType),
		Timestamp:           time.Unix(row.TimestampSec, row.TimestampNsec).UTC(),
		RiskLevel:           event.RiskLevel(row.RiskLevel),
		SensitiveDataAccess: row.SensitiveDataAccess,
		UnusualTime:         row.UnusualTime,
		LargeDataTransfer:   row.LargeDataTransfer,
		PrivilegedAction:    row.PrivilegedAction,
		CreatedAt:           time.Unix(row.CreatedAtSec, row.CreatedAtNsec).UTC(),
	}
	if row.RiskScore.Valid {
		score := row.RiskScore.Float64
		ev.RiskScore = &score
	}
	if row.Details.Valid {
		ev.Details = json.RawMessage(row.Details.String)
	}
	return ev
}
