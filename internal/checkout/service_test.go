package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/volman/internal/model"
)

// --- モック ---

type mockCartRepo struct {
	listByUserFn func(ctx context.Context, username string) ([]model.CartItem, error)
}

func (m *mockCartRepo) Upsert(ctx context.Context, username string, projectID int64, slots, hours int) error {
	return nil
}
func (m *mockCartRepo) Remove(ctx context.Context, username string, projectID int64) error {
	return nil
}
func (m *mockCartRepo) ListByUser(ctx context.Context, username string) ([]model.CartItem, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, username)
	}
	return nil, nil
}
func (m *mockCartRepo) Clear(ctx context.Context, username string) error {
	return nil
}

type mockCheckoutRepo struct {
	confirmCartFn func(ctx context.Context, username string, items []model.CartItem) ([]int64, error)
	calls         int
}

func (m *mockCheckoutRepo) ConfirmCart(ctx context.Context, username string, items []model.CartItem) ([]int64, error) {
	m.calls++
	if m.confirmCartFn != nil {
		return m.confirmCartFn(ctx, username, items)
	}
	return nil, nil
}

type mockRecorder struct {
	mu            sync.Mutex
	successCount  int
	slotsRecorded int
	rejectedCodes []string
}

func (m *mockRecorder) RecordConfirmSuccess(registrations, slots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successCount += registrations
	m.slotsRecorded += slots
}
func (m *mockRecorder) RecordConfirmRejected(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectedCodes = append(m.rejectedCodes, code)
}
func (m *mockRecorder) RecordConfirmLatency(d time.Duration) {}

// fakeCapacityStore は単一プロジェクトの容量勘定を原子的に行うインメモリ実装。
// 実DBのFOR UPDATEによる直列化と同じ意味論をmutexで再現する。
type fakeCapacityStore struct {
	mu         sync.Mutex
	total      int
	registered int
	nextRegID  int64
	carts      map[string][]model.CartItem
}

func newFakeCapacityStore(total, registered int) *fakeCapacityStore {
	return &fakeCapacityStore{total: total, registered: registered, carts: map[string][]model.CartItem{}}
}

func (f *fakeCapacityStore) ConfirmCart(ctx context.Context, username string, items []model.CartItem) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	requested := 0
	for _, item := range items {
		requested += item.Slots
	}
	if requested > f.total-f.registered {
		return nil, model.NewInsufficientSlotsError(items[0].ProjectID)
	}

	f.registered += requested
	ids := make([]int64, 0, len(items))
	for range items {
		f.nextRegID++
		ids = append(ids, f.nextRegID)
	}
	delete(f.carts, username)
	return ids, nil
}

// 月曜を「今日」に固定すると全曜日トークンが有効になる
var fixedMonday = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestService(cart *mockCartRepo, co *mockCheckoutRepo, rec Recorder) *Service {
	s := NewService(cart, co, rec, Config{Zone: time.UTC})
	s.now = func() time.Time { return fixedMonday }
	return s
}

// --- テスト ---

// 空カートの確定がEMPTY_CARTで返り、トランザクションが開かれないことを検証
func TestService_Confirm_EmptyCart(t *testing.T) {
	cart := &mockCartRepo{
		listByUserFn: func(ctx context.Context, username string) ([]model.CartItem, error) {
			return nil, nil
		},
	}
	co := &mockCheckoutRepo{}
	rec := &mockRecorder{}
	svc := newTestService(cart, co, rec)

	_, err := svc.Confirm(context.Background(), "alice")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmptyCart {
		t.Fatalf("expected EMPTY_CART, got %v", err)
	}
	if co.calls != 0 {
		t.Error("ConfirmCart should not be called for an empty cart")
	}
	if len(rec.rejectedCodes) != 1 || rec.rejectedCodes[0] != model.ErrCodeEmptyCart {
		t.Errorf("rejected codes = %v, want [EMPTY_CART]", rec.rejectedCodes)
	}
}

// 過ぎた曜日の項目が1件でもあればバッチ全体が拒否されることを検証
func TestService_Confirm_IneligibleDayAbortsBatch(t *testing.T) {
	cart := &mockCartRepo{
		listByUserFn: func(ctx context.Context, username string) ([]model.CartItem, error) {
			return []model.CartItem{
				{ProjectID: 1, Slots: 1, Hours: 1, Day: "Fri"},
				{ProjectID: 2, Slots: 1, Hours: 1, Day: "Mon"}, // 経過済み
				{ProjectID: 3, Slots: 1, Hours: 1, Day: "Sat"},
			}, nil
		},
	}
	co := &mockCheckoutRepo{}
	svc := newTestService(cart, co, nil)

	// 水曜日を「今日」にすると月曜の項目は過去になる
	svc.now = func() time.Time { return time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC) }

	_, err := svc.Confirm(context.Background(), "alice")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeIneligibleDay {
		t.Fatalf("expected INELIGIBLE_DAY, got %v", err)
	}
	if co.calls != 0 {
		t.Error("capacity must not be touched when any item is ineligible")
	}
}

// 確定成功時に登録IDが返り、メトリクスが記録されることを検証
func TestService_Confirm_Success(t *testing.T) {
	cart := &mockCartRepo{
		listByUserFn: func(ctx context.Context, username string) ([]model.CartItem, error) {
			return []model.CartItem{
				{ProjectID: 1, Slots: 2, Hours: 3, Day: "Wed", HourlyRate: 20},
				{ProjectID: 2, Slots: 1, Hours: 1, Day: "Fri", HourlyRate: 15},
			}, nil
		},
	}
	co := &mockCheckoutRepo{
		confirmCartFn: func(ctx context.Context, username string, items []model.CartItem) ([]int64, error) {
			if username != "alice" {
				t.Errorf("username = %q, want %q", username, "alice")
			}
			if len(items) != 2 {
				t.Errorf("len(items) = %d, want 2", len(items))
			}
			return []int64{101, 102}, nil
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(cart, co, rec)

	ids, err := svc.Confirm(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 101 || ids[1] != 102 {
		t.Errorf("ids = %v, want [101 102]", ids)
	}
	if rec.successCount != 2 {
		t.Errorf("successCount = %d, want 2", rec.successCount)
	}
	if rec.slotsRecorded != 3 {
		t.Errorf("slotsRecorded = %d, want 3", rec.slotsRecorded)
	}
}

// 枠不足エラーがそのまま通り、拒否として記録されることを検証
func TestService_Confirm_InsufficientSlots(t *testing.T) {
	cart := &mockCartRepo{
		listByUserFn: func(ctx context.Context, username string) ([]model.CartItem, error) {
			return []model.CartItem{{ProjectID: 7, Slots: 3, Hours: 1, Day: "Sat"}}, nil
		},
	}
	co := &mockCheckoutRepo{
		confirmCartFn: func(ctx context.Context, username string, items []model.CartItem) ([]int64, error) {
			return nil, model.NewInsufficientSlotsError(7)
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(cart, co, rec)

	_, err := svc.Confirm(context.Background(), "alice")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInsufficientSlots {
		t.Fatalf("expected INSUFFICIENT_SLOTS, got %v", err)
	}
	if len(rec.rejectedCodes) != 1 || rec.rejectedCodes[0] != model.ErrCodeInsufficientSlots {
		t.Errorf("rejected codes = %v, want [INSUFFICIENT_SLOTS]", rec.rejectedCodes)
	}
}

// ストレージ競合エラーがTRANSIENT_STORAGEに分類されることを検証
func TestService_Confirm_StorageErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"直列化失敗", &pq.Error{Code: "40001"}, model.ErrCodeTransientStorage},
		{"デッドロック", &pq.Error{Code: "40P01"}, model.ErrCodeTransientStorage},
		{"クエリキャンセル", &pq.Error{Code: "57014"}, model.ErrCodeTransientStorage},
		{"CHECK制約違反", &pq.Error{Code: "23514", Constraint: "projects_capacity_check"}, model.ErrCodeIntegrityViolation},
		{"タイムアウト", context.DeadlineExceeded, model.ErrCodeTransientStorage},
		{"その他のエラー", errors.New("connection reset"), model.ErrCodeTransientStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := &mockCartRepo{
				listByUserFn: func(ctx context.Context, username string) ([]model.CartItem, error) {
					return []model.CartItem{{ProjectID: 1, Slots: 1, Hours: 1, Day: "Sun"}}, nil
				},
			}
			co := &mockCheckoutRepo{
				confirmCartFn: func(ctx context.Context, username string, items []model.CartItem) ([]int64, error) {
					return nil, tt.err
				},
			}
			svc := newTestService(cart, co, nil)

			_, err := svc.Confirm(context.Background(), "alice")

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

// カート読み取り失敗がTRANSIENT_STORAGEとして返ることを検証
func TestService_Confirm_CartReadFailure(t *testing.T) {
	cart := &mockCartRepo{
		listByUserFn: func(ctx context.Context, username string) ([]model.CartItem, error) {
			return nil, errors.New("db down")
		},
	}
	svc := newTestService(cart, &mockCheckoutRepo{}, nil)

	_, err := svc.Confirm(context.Background(), "alice")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTransientStorage {
		t.Fatalf("expected TRANSIENT_STORAGE, got %v", err)
	}
}

// 同時確定の競合で容量が定員を超えないことを検証:
// 残り2枠のプロジェクトに8ユーザーが1枠ずつ同時確定し、成功は2件になる
func TestService_Confirm_ConcurrentNeverExceedsCapacity(t *testing.T) {
	store := newFakeCapacityStore(5, 3) // available = 2

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	insufficient := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cart := &mockCartRepo{
				listByUserFn: func(ctx context.Context, username string) ([]model.CartItem, error) {
					return []model.CartItem{{ProjectID: 1, Slots: 1, Hours: 1, Day: "Sun"}}, nil
				},
			}
			svc := newTestService(cart, nil, nil)
			svc.checkoutRepo = store

			_, err := svc.Confirm(context.Background(), "user")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			var apiErr *model.APIError
			if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInsufficientSlots {
				insufficient++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 2 {
		t.Errorf("succeeded = %d, want exactly 2", succeeded)
	}
	if insufficient != workers-2 {
		t.Errorf("insufficient = %d, want %d", insufficient, workers-2)
	}
	if store.registered > store.total {
		t.Errorf("registered (%d) exceeds total (%d)", store.registered, store.total)
	}
	if store.registered != store.total {
		t.Errorf("registered = %d, want %d (exactly full)", store.registered, store.total)
	}
}

// fakeProjectLedger は複数プロジェクトの容量勘定を項目単位で行うインメモリ実装。
// 実トランザクションと同様に、途中の項目で枠不足になった場合は
// それまでの増分をすべて巻き戻し、カートも残す。
type fakeProjectLedger struct {
	mu        sync.Mutex
	available map[int64]int
	nextRegID int64
	carts     map[string][]model.CartItem
}

func (f *fakeProjectLedger) ConfirmCart(ctx context.Context, username string, items []model.CartItem) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	committed := map[int64]int{}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.Slots > f.available[item.ProjectID] {
			// 巻き戻し
			for id, slots := range committed {
				f.available[id] += slots
			}
			f.nextRegID -= int64(len(ids))
			return nil, model.NewInsufficientSlotsError(item.ProjectID)
		}
		f.available[item.ProjectID] -= item.Slots
		committed[item.ProjectID] += item.Slots
		f.nextRegID++
		ids = append(ids, f.nextRegID)
	}
	delete(f.carts, username)
	return ids, nil
}

// 複数項目カートの途中の項目が枠不足の場合、登録が1件も作られず
// 先行項目の容量も減らず、カートが残ることを検証
func TestService_Confirm_PartialShortageRollsBackBatch(t *testing.T) {
	cartItems := []model.CartItem{
		{ProjectID: 1, Slots: 1, Hours: 1, Day: "Wed", HourlyRate: 20},
		{ProjectID: 2, Slots: 2, Hours: 1, Day: "Fri", HourlyRate: 15}, // 枠なし
		{ProjectID: 3, Slots: 1, Hours: 2, Day: "Sat", HourlyRate: 30},
	}
	ledger := &fakeProjectLedger{
		available: map[int64]int{1: 5, 2: 0, 3: 5},
		carts:     map[string][]model.CartItem{"alice": cartItems},
	}
	cart := &mockCartRepo{
		listByUserFn: func(ctx context.Context, username string) ([]model.CartItem, error) {
			return ledger.carts[username], nil
		},
	}
	svc := newTestService(cart, nil, &mockRecorder{})
	svc.checkoutRepo = ledger

	_, err := svc.Confirm(context.Background(), "alice")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInsufficientSlots {
		t.Fatalf("expected INSUFFICIENT_SLOTS, got %v", err)
	}
	if ledger.nextRegID != 0 {
		t.Errorf("registrations created = %d, want 0", ledger.nextRegID)
	}
	if ledger.available[1] != 5 || ledger.available[3] != 5 {
		t.Errorf("capacity changed for untouched projects: %v", ledger.available)
	}
	if len(ledger.carts["alice"]) != 3 {
		t.Errorf("cart items = %d, want 3 (cart must survive a failed confirm)", len(ledger.carts["alice"]))
	}

	// カートを空けずに再試行すると同じ結果になる
	_, err = svc.Confirm(context.Background(), "alice")
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInsufficientSlots {
		t.Fatalf("expected INSUFFICIENT_SLOTS on retry, got %v", err)
	}
}
