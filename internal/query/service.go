package query

import (
	"context"

	"github.com/nao1215/riskevent/internal/eventstore"
	"github.com/nao1215/riskevent/pkg/event"
)

// DefaultListLimit は呼び出し側が件数を省略した場合に使う既定の件数。
const DefaultListLimit = 100

// Store はServiceが利用するEvent Storeの操作。
// *eventstore.Storeがこれを満たす。
type Store interface {
	Append(ctx context.Context, ev event.RiskEvent) (event.RiskEvent, error)
	FetchByID(ctx context.Context, id int64) (event.RiskEvent, bool, error)
	QueryRecent(ctx context.Context, q eventstore.Query) ([]event.RiskEvent, error)
}

// Service はリスクイベントの一覧・取得・登録を提供する。
// 状態を持たないため、複数のゴルーチンから同時に利用できる。
type Service struct {
	store Store
}

// NewService はstoreを利用するServiceを生成する。
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListEvents は発生日時の降順で最大limit件のイベントを返す。
// riskLevelが空の場合は絞り込まない。limitの扱いはEvent Storeに委ねる。
func (s *Service) ListEvents(ctx context.Context, limit int, riskLevel event.RiskLevel) ([]event.RiskEvent, error) {
	return s.store.QueryRecent(ctx, eventstore.Query{
		Limit:     limit,
		RiskLevel: riskLevel,
	})
}

// GetEvent はIDに一致するイベントを返す。存在しない場合はfalseを返す。
func (s *Service) GetEvent(ctx context.Context, id int64) (event.RiskEvent, bool, error) {
	return s.store.FetchByID(ctx, id)
}

// CreateEvent はイベントを永続化し、IDが採番されたレコードを返す。
func (s *Service) CreateEvent(ctx context.Context, candidate event.RiskEvent) (event.RiskEvent, error) {
	return s.store.Append(ctx, candidate)
}
