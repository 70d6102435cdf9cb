package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/riskevent/pkg/event"
	"github.com/nao1215/riskevent/pkg/metrics"
)

// setupTestStore はテスト用のStoreをインメモリSQLiteで構築するヘルパー関数。
// 各テストケースで独立したデータベースを使用するため、テスト間の干渉が発生しない。
func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	s, err := Open(context.Background(), MemoryPath, opts...)
	if err != nil {
		t.Fatalf("インメモリSQLiteでのStore構築に失敗: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// appendTestEvent はテスト用にイベントを追記するヘルパー関数。
// 発生日時はUnix秒で指定する。
func appendTestEvent(t *testing.T, s *Store, userID string, level event.RiskLevel, unixSec int64) event.RiskEvent {
	t.Helper()

	stored, err := s.Append(context.Background(), event.RiskEvent{
		UserID:    userID,
		EventType: event.TypeDataAccess,
		Timestamp: time.Unix(unixSec, 0),
		RiskLevel: level,
	})
	if err != nil {
		t.Fatalf("イベントの追記に失敗: %v", err)
	}
	return stored
}

// ids はイベント列のIDを順に取り出す。
func ids(events []event.RiskEvent) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestAppend はイベント追記の各パターンを検証する。
func TestAppend(t *testing.T) {
	t.Parallel()

	t.Run("UnixNanoの範囲外や秒未満を含む発生日時も同じ時刻で保存されること", func(t *testing.T) {
		t.Parallel()

		jst := time.FixedZone("JST", 9*60*60)
		tests := []struct {
			name string
			ts   time.Time
		}{
			{name: "1600年", ts: time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)},
			{name: "2300年", ts: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)},
			{name: "1970年より前の秒未満", ts: time.Date(1969, 12, 31, 23, 59, 59, 500000000, time.UTC)},
			{name: "UTC以外のゾーンの秒未満", ts: time.Date(2024, 7, 1, 8, 30, 15, 987654321, jst)},
		}

		s := setupTestStore(t)
		// 記録日時も同じ変換を通る
		s.now = func() time.Time { return time.Date(2400, 6, 30, 12, 0, 0, 1, time.UTC) }

		for _, tt := range tests {
			stored, err := s.Append(context.Background(), event.RiskEvent{
				UserID:    "user-" + tt.name,
				EventType: event.TypeLogin,
				Timestamp: tt.ts,
			})
			if err != nil {
				t.Fatalf("%s: Append()でエラーが発生: %v", tt.name, err)
			}
			if !stored.Timestamp.Equal(tt.ts) {
				t.Errorf("%s: Append()のTimestamp = %v, want %v", tt.name, stored.Timestamp, tt.ts)
			}

			got, found, err := s.FetchByID(context.Background(), stored.ID)
			if err != nil || !found {
				t.Fatalf("%s: FetchByID() found=%v err=%v", tt.name, found, err)
			}
			if !got.Timestamp.Equal(tt.ts) {
				t.Errorf("%s: FetchByID()のTimestamp = %v, want %v", tt.name, got.Timestamp, tt.ts)
			}
			if !got.CreatedAt.Equal(time.Date(2400, 6, 30, 12, 0, 0, 1, time.UTC)) {
				t.Errorf("%s: CreatedAt = %v, want 2400-06-30T12:00:00.000000001Z", tt.name, got.CreatedAt)
			}
		}
	})

	t.Run("IDが採番され全フィールドが保存されること", func(t *testing.T) {
		t.Parallel()

		recordedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		s := setupTestStore(t)
		s.now = func() time.Time { return recordedAt }

		score := 85.0
		in := event.RiskEvent{
			UserID:              "user001",
			EventType:           event.TypeDataExport,
			Timestamp:           time.Date(2024, 1, 16, 9, 45, 0, 123456789, time.UTC),
			RiskScore:           &score,
			RiskLevel:           event.RiskLevelHigh,
			SensitiveDataAccess: true,
			LargeDataTransfer:   true,
			PrivilegedAction:    true,
			Details:             json.RawMessage(`{"destination":"usb"}`),
		}

		got, err := s.Append(context.Background(), in)
		if err != nil {
			t.Fatalf("Append()でエラーが発生: %v", err)
		}

		if got.ID == 0 {
			t.Error("IDが採番されていない")
		}
		if got.UserID != in.UserID || got.EventType != in.EventType || got.RiskLevel != in.RiskLevel {
			t.Errorf("保存内容が一致しない: got=%+v in=%+v", got, in)
		}
		if !got.Timestamp.Equal(in.Timestamp) {
			t.Errorf("Timestamp = %v, want %v", got.Timestamp, in.Timestamp)
		}
		if got.RiskScore == nil || *got.RiskScore != score {
			t.Errorf("RiskScore = %v, want %v", got.RiskScore, score)
		}
		if !got.SensitiveDataAccess || got.UnusualTime || !got.LargeDataTransfer || !got.PrivilegedAction {
			t.Errorf("フラグが一致しない: %+v", got)
		}
		if string(got.Details) != `{"destination":"usb"}` {
			t.Errorf("Details = %s, want %s", got.Details, `{"destination":"usb"}`)
		}
		if !got.CreatedAt.Equal(recordedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, recordedAt)
		}
	})

	t.Run("呼び出し側が指定したIDは無視されること", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		first := appendTestEvent(t, s, "user001", event.RiskLevelLow, 10)

		got, err := s.Append(context.Background(), event.RiskEvent{
			ID:        first.ID,
			UserID:    "user002",
			EventType: event.TypeLogin,
			Timestamp: time.Unix(20, 0),
		})
		if err != nil {
			t.Fatalf("Append()でエラーが発生: %v", err)
		}
		if got.ID == first.ID {
			t.Errorf("既存のID %d が再利用された", got.ID)
		}
	})

	t.Run("連続して追記したイベントのIDはすべて異なること", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		seen := make(map[int64]bool)
		for i := 0; i < 50; i++ {
			ev := appendTestEvent(t, s, "user001", event.RiskLevelLow, int64(i))
			if seen[ev.ID] {
				t.Fatalf("ID %d が重複した", ev.ID)
			}
			seen[ev.ID] = true
		}
	})

	t.Run("並行して追記してもIDが重複しないこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)

		const workers = 8
		const perWorker = 10

		var (
			mu   sync.Mutex
			seen = make(map[int64]bool)
			wg   sync.WaitGroup
			errs = make(chan error, workers*perWorker)
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					ev, err := s.Append(context.Background(), event.RiskEvent{
						UserID:    "user-concurrent",
						EventType: event.TypeLogin,
						Timestamp: time.Unix(int64(w*perWorker+i), 0),
					})
					if err != nil {
						errs <- err
						return
					}
					mu.Lock()
					if seen[ev.ID] {
						errs <- errors.New("IDが重複した")
					}
					seen[ev.ID] = true
					mu.Unlock()
				}
			}(w)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Errorf("並行追記でエラーが発生: %v", err)
		}
		if len(seen) != workers*perWorker {
			t.Errorf("採番されたID数 = %d, want %d", len(seen), workers*perWorker)
		}
	})

	t.Run("発生日時が未設定の場合はErrInvalidEventを返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		_, err := s.Append(context.Background(), event.RiskEvent{UserID: "user001", EventType: event.TypeLogin})
		if !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("err = %v, want ErrInvalidEvent", err)
		}

		events, err := s.QueryRecent(context.Background(), Query{Limit: 10})
		if err != nil {
			t.Fatalf("QueryRecent()でエラーが発生: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("拒否されたイベントが保存されている: %+v", events)
		}
	})

	t.Run("Detailsが不正なJSONの場合はErrInvalidEventを返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		_, err := s.Append(context.Background(), event.RiskEvent{
			UserID:    "user001",
			EventType: event.TypeLogin,
			Timestamp: time.Unix(1, 0),
			Details:   json.RawMessage(`{"broken"`),
		})
		if !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("err = %v, want ErrInvalidEvent", err)
		}
	})

	t.Run("リスクレベルは値の集合を制限しないこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		got := appendTestEvent(t, s, "user001", event.RiskLevel("SEVERE-CUSTOM"), 1)
		if got.RiskLevel != "SEVERE-CUSTOM" {
			t.Errorf("RiskLevel = %q, want %q", got.RiskLevel, "SEVERE-CUSTOM")
		}
	})
}

// TestFetchByID はIDによる取得を検証する。
func TestFetchByID(t *testing.T) {
	t.Parallel()

	t.Run("追記したイベントを同じ内容で取得できること", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		stored := appendTestEvent(t, s, "user003", event.RiskLevelMedium, 30)

		got, found, err := s.FetchByID(context.Background(), stored.ID)
		if err != nil {
			t.Fatalf("FetchByID()でエラーが発生: %v", err)
		}
		if !found {
			t.Fatal("追記したイベントが見つからない")
		}
		if got.ID != stored.ID || got.UserID != "user003" || got.RiskLevel != event.RiskLevelMedium {
			t.Errorf("取得内容が一致しない: got=%+v stored=%+v", got, stored)
		}
		if !got.Timestamp.Equal(stored.Timestamp) || !got.CreatedAt.Equal(stored.CreatedAt) {
			t.Errorf("日時が一致しない: got=%+v stored=%+v", got, stored)
		}
		if got.RiskScore != nil || got.Details != nil {
			t.Errorf("未設定の任意フィールドに値が入っている: %+v", got)
		}
	})

	t.Run("存在しないIDの場合はエラーではなくfalseを返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		appendTestEvent(t, s, "user001", event.RiskLevelLow, 10)

		got, found, err := s.FetchByID(context.Background(), 9999999)
		if err != nil {
			t.Fatalf("FetchByID()でエラーが発生: %v", err)
		}
		if found {
			t.Errorf("存在しないIDでイベントが返された: %+v", got)
		}
	})

	t.Run("同じIDを2回取得すると同じ結果になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		stored := appendTestEvent(t, s, "user001", event.RiskLevelHigh, 10)

		first, _, err := s.FetchByID(context.Background(), stored.ID)
		if err != nil {
			t.Fatalf("1回目のFetchByID()でエラーが発生: %v", err)
		}
		second, _, err := s.FetchByID(context.Background(), stored.ID)
		if err != nil {
			t.Fatalf("2回目のFetchByID()でエラーが発生: %v", err)
		}

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		if string(a) != string(b) {
			t.Errorf("2回の取得結果が異なる: %s != %s", a, b)
		}
	})
}

// TestQueryRecent は一覧取得の並び順・件数・絞り込みを検証する。
func TestQueryRecent(t *testing.T) {
	t.Parallel()

	// A(10, LOW), B(30, HIGH), C(20, HIGH) を追記したStoreを返す
	setupScenario := func(t *testing.T) (*Store, event.RiskEvent, event.RiskEvent, event.RiskEvent) {
		t.Helper()
		s := setupTestStore(t)
		a := appendTestEvent(t, s, "user-a", event.RiskLevelLow, 10)
		b := appendTestEvent(t, s, "user-b", event.RiskLevelHigh, 30)
		c := appendTestEvent(t, s, "user-c", event.RiskLevelHigh, 20)
		return s, a, b, c
	}

	t.Run("UnixNanoの範囲外や秒未満の差も降順で並ぶこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		jst := time.FixedZone("JST", 9*60*60)
		inputs := []struct {
			userID string
			ts     time.Time
		}{
			{"y1600", time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)},
			{"y2300", time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)},
			{"y2024", time.Date(2024, 1, 1, 9, 0, 0, 0, jst)},
			{"pre-epoch-early", time.Date(1969, 12, 31, 23, 59, 59, 400000000, time.UTC)},
			{"pre-epoch-late", time.Date(1969, 12, 31, 23, 59, 59, 500000000, time.UTC)},
			{"same-second-late", time.Date(2024, 1, 1, 0, 0, 0, 2, time.UTC)},
		}
		for _, in := range inputs {
			if _, err := s.Append(context.Background(), event.RiskEvent{
				UserID:    in.userID,
				EventType: event.TypeLogin,
				Timestamp: in.ts,
			}); err != nil {
				t.Fatalf("Append()でエラーが発生: %v", err)
			}
		}

		got, err := s.QueryRecent(context.Background(), Query{Limit: 10})
		if err != nil {
			t.Fatalf("QueryRecent()でエラーが発生: %v", err)
		}

		// y2024は2024-01-01T00:00:00Zでsame-second-lateより2ナノ秒前
		want := []string{"y2300", "same-second-late", "y2024", "pre-epoch-late", "pre-epoch-early", "y1600"}
		if len(got) != len(want) {
			t.Fatalf("件数 = %d, want %d", len(got), len(want))
		}
		for i, ev := range got {
			if ev.UserID != want[i] {
				t.Errorf("got[%d] = %s, want %s", i, ev.UserID, want[i])
			}
			if i > 0 && ev.Timestamp.After(got[i-1].Timestamp) {
				t.Errorf("got[%d] (%v) が直前 (%v) より新しい", i, ev.Timestamp, got[i-1].Timestamp)
			}
		}
	})

	t.Run("発生日時の降順で返されること", func(t *testing.T) {
		t.Parallel()

		s, a, b, c := setupScenario(t)
		got, err := s.QueryRecent(context.Background(), Query{Limit: 10})
		if err != nil {
			t.Fatalf("QueryRecent()でエラーが発生: %v", err)
		}
		want := []int64{b.ID, c.ID, a.ID}
		if !equalIDs(ids(got), want) {
			t.Errorf("ids = %v, want %v", ids(got), want)
		}
	})

	t.Run("件数制限が適用されること", func(t *testing.T) {
		t.Parallel()

		s, _, b, _ := setupScenario(t)
		got, err := s.QueryRecent(context.Background(), Query{Limit: 1})
		if err != nil {
			t.Fatalf("QueryRecent()でエラーが発生: %v", err)
		}
		if !equalIDs(ids(got), []int64{b.ID}) {
			t.Errorf("ids = %v, want [%d]", ids(got), b.ID)
		}
	})

	t.Run("リスクレベルで完全一致の絞り込みができること", func(t *testing.T) {
		t.Parallel()

		s, _, b, c := setupScenario(t)
		// 大文字小文字が異なるラベルは一致しない
		appendTestEvent(t, s, "user-d", event.RiskLevel("high"), 40)

		got, err := s.QueryRecent(context.Background(), Query{Limit: 10, RiskLevel: event.RiskLevelHigh})
		if err != nil {
			t.Fatalf("QueryRecent()でエラーが発生: %v", err)
		}
		if !equalIDs(ids(got), []int64{b.ID, c.ID}) {
			t.Errorf("ids = %v, want %v", ids(got), []int64{b.ID, c.ID})
		}
		for _, e := range got {
			if e.RiskLevel != event.RiskLevelHigh {
				t.Errorf("絞り込み結果に別のリスクレベルが含まれている: %+v", e)
			}
		}
	})

	t.Run("絞り込みは件数制限より先に適用されること", func(t *testing.T) {
		t.Parallel()

		s, _, b, _ := setupScenario(t)
		appendTestEvent(t, s, "user-e", event.RiskLevelLow, 100)

		got, err := s.QueryRecent(context.Background(), Query{Limit: 1, RiskLevel: event.RiskLevelHigh})
		if err != nil {
			t.Fatalf("QueryRecent()でエラーが発生: %v", err)
		}
		if !equalIDs(ids(got), []int64{b.ID}) {
			t.Errorf("ids = %v, want [%d]", ids(got), b.ID)
		}
	})

	t.Run("該当するイベントがない場合は空のスライスを返すこと", func(t *testing.T) {
		t.Parallel()

		s, _, _, _ := setupScenario(t)
		got, err := s.QueryRecent(context.Background(), Query{Limit: 10, RiskLevel: event.RiskLevelCritical})
		if err != nil {
			t.Fatalf("QueryRecent()でエラーが発生: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("got = %#v, want empty non-nil slice", got)
		}
	})

	t.Run("0以下の件数の場合は空のスライスを返すこと", func(t *testing.T) {
		t.Parallel()

		s, _, _, _ := setupScenario(t)
		for _, limit := range []int{0, -1, -100} {
			got, err := s.QueryRecent(context.Background(), Query{Limit: limit})
			if err != nil {
				t.Fatalf("limit=%d: QueryRecent()でエラーが発生: %v", limit, err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("limit=%d: got = %#v, want empty non-nil slice", limit, got)
			}
		}
	})

	t.Run("上限を超える件数は上限に切り詰められること", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t, WithMaxLimit(2))
		for i := 0; i < 5; i++ {
			appendTestEvent(t, s, "user001", event.RiskLevelLow, int64(i))
		}

		got, err := s.QueryRecent(context.Background(), Query{Limit: 1 << 30})
		if err != nil {
			t.Fatalf("QueryRecent()でエラーが発生: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("件数 = %d, want 2", len(got))
		}
		if s.MaxLimit() != 2 {
			t.Errorf("MaxLimit() = %d, want 2", s.MaxLimit())
		}
	})

	t.Run("任意の件数で降順と件数上限が守られること", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		// 発生日時がばらばらで重複も含むイベント
		for _, ts := range []int64{5, 3, 9, 3, 7, 1, 9, 2, 8, 6} {
			appendTestEvent(t, s, "user001", event.RiskLevelLow, ts)
		}

		for n := 1; n <= 12; n++ {
			got, err := s.QueryRecent(context.Background(), Query{Limit: n})
			if err != nil {
				t.Fatalf("limit=%d: QueryRecent()でエラーが発生: %v", n, err)
			}
			if len(got) > n {
				t.Errorf("limit=%d: 件数 %d が上限を超えている", n, len(got))
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].Timestamp.Before(got[i].Timestamp) {
					t.Errorf("limit=%d: 降順になっていない: %v の後に %v", n, got[i-1].Timestamp, got[i].Timestamp)
				}
			}
		}
	})
}

// TestStoreFailure は永続化層の障害がエラーとして報告されることを検証する。
func TestStoreFailure(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), MemoryPath)
	if err != nil {
		t.Fatalf("Store構築に失敗: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close()でエラーが発生: %v", err)
	}

	ctx := context.Background()
	if _, err := s.Append(ctx, event.RiskEvent{UserID: "u", EventType: event.TypeLogin, Timestamp: time.Unix(1, 0)}); err == nil {
		t.Error("閉じたStoreへのAppend()がエラーを返さなかった")
	}
	if _, _, err := s.FetchByID(ctx, 1); err == nil {
		t.Error("閉じたStoreへのFetchByID()がエラーを返さなかった")
	}
	if _, err := s.QueryRecent(ctx, Query{Limit: 10}); err == nil {
		t.Error("閉じたStoreへのQueryRecent()がエラーを返さなかった")
	}
	if err := s.Ping(ctx); err == nil {
		t.Error("閉じたStoreへのPing()がエラーを返さなかった")
	}
}

// TestDurability はファイルに保存したイベントが再オープン後も残ることを検証する。
func TestDurability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	// 存在しない親ディレクトリは作成される
	path := filepath.Join(t.TempDir(), "data", "riskevent.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Store構築に失敗: %v", err)
	}
	stored := appendTestEvent(t, s, "user002", event.RiskLevelHigh, 1705328400)
	if err := s.Close(); err != nil {
		t.Fatalf("Close()でエラーが発生: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Storeの再オープンに失敗: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, found, err := reopened.FetchByID(ctx, stored.ID)
	if err != nil {
		t.Fatalf("FetchByID()でエラーが発生: %v", err)
	}
	if !found || got.UserID != "user002" {
		t.Errorf("再オープン後にイベントが取得できない: found=%v got=%+v", found, got)
	}

	// 再オープン後に採番されるIDは既存のIDと重複しない
	next := appendTestEvent(t, reopened, "user003", event.RiskLevelLow, 1705328500)
	if next.ID <= stored.ID {
		t.Errorf("再オープン後のID %d が既存のID %d 以下", next.ID, stored.ID)
	}
}

// TestStoreMetrics は操作時間がメトリクスに記録されることを検証する。
func TestStoreMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	s := setupTestStore(t, WithMetrics(m))
	appendTestEvent(t, s, "user001", event.RiskLevelLow, 1)
	if _, err := s.QueryRecent(context.Background(), Query{Limit: 10}); err != nil {
		t.Fatalf("QueryRecent()でエラーが発生: %v", err)
	}

	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("メトリクスの収集に失敗: %v", err)
	}
	ops := make(map[string]uint64)
	for _, mf := range mfs {
		if mf.GetName() != "riskevent_store_operation_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "operation" {
					ops[lp.GetValue()] = metric.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	if ops["append"] != 1 || ops["query_recent"] != 1 {
		t.Errorf("記録された操作 = %v, want append=1 query_recent=1", ops)
	}
}

// TestDSN は接続文字列の組み立てを検証する。
func TestDSN(t *testing.T) {
	t.Parallel()

	if got := DSN(MemoryPath); got != MemoryPath {
		t.Errorf("DSN(%q) = %q, want %q", MemoryPath, got, MemoryPath)
	}
	want := "file:/data/riskevent.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if got := DSN("/data/riskevent.db"); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
