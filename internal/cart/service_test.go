package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/volman/internal/model"
)

// --- モック ---

type mockCartRepo struct {
	upsertFn func(ctx context.Context, username string, projectID int64, slots, hours int) error
	removeFn func(ctx context.Context, username string, projectID int64) error
	listFn   func(ctx context.Context, username string) ([]model.CartItem, error)
	clearFn  func(ctx context.Context, username string) error
}

func (m *mockCartRepo) Upsert(ctx context.Context, username string, projectID int64, slots, hours int) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, username, projectID, slots, hours)
	}
	return nil
}
func (m *mockCartRepo) Remove(ctx context.Context, username string, projectID int64) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, username, projectID)
	}
	return nil
}
func (m *mockCartRepo) ListByUser(ctx context.Context, username string) ([]model.CartItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, username)
	}
	return nil, nil
}
func (m *mockCartRepo) Clear(ctx context.Context, username string) error {
	if m.clearFn != nil {
		return m.clearFn(ctx, username)
	}
	return nil
}

type mockProjectRepo struct {
	findByIDFn func(ctx context.Context, id int64) (*model.Project, error)
}

func (m *mockProjectRepo) FindByID(ctx context.Context, id int64) (*model.Project, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockProjectRepo) ListActive(ctx context.Context) ([]*model.Project, error) { return nil, nil }
func (m *mockProjectRepo) ListAll(ctx context.Context) ([]*model.Project, error)    { return nil, nil }
func (m *mockProjectRepo) Available(ctx context.Context, id int64) (int, error)     { return 0, nil }
func (m *mockProjectRepo) Upsert(ctx context.Context, p *model.Project) error       { return nil }
func (m *mockProjectRepo) SetActive(ctx context.Context, id int64, active bool) error {
	return nil
}

func activeProject(id int64) *model.Project {
	return &model.Project{ID: id, Title: "Tree Planting", Day: "Sat", TotalSlots: 5, Active: true}
}

// 月曜を「今日」に固定すると全曜日トークンが有効になる
var fixedMonday = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestService(cartRepo *mockCartRepo, projectRepo *mockProjectRepo) *Service {
	svc := NewService(cartRepo, projectRepo, time.UTC)
	svc.now = func() time.Time { return fixedMonday }
	return svc
}

// --- テスト ---

// 有効なプロジェクトがカートに追加されることを検証
func TestService_Add_Success(t *testing.T) {
	upserted := false
	cartRepo := &mockCartRepo{
		upsertFn: func(ctx context.Context, username string, projectID int64, slots, hours int) error {
			upserted = true
			if username != "alice" || projectID != 1 || slots != 2 || hours != 3 {
				t.Errorf("Upsert(%q, %d, %d, %d) has unexpected arguments", username, projectID, slots, hours)
			}
			return nil
		},
	}
	projectRepo := &mockProjectRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.Project, error) {
			return activeProject(id), nil
		},
	}
	svc := newTestService(cartRepo, projectRepo)

	if err := svc.Add(context.Background(), "alice", 1, 2, 3); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if !upserted {
		t.Error("expected cart Upsert to be called")
	}
}

// 枠数・時間の範囲検証を検証
func TestService_Add_QuantityValidation(t *testing.T) {
	tests := []struct {
		name  string
		slots int
		hours int
	}{
		{"枠数0", 0, 1},
		{"枠数4", 4, 1},
		{"枠数負", -1, 1},
		{"時間0", 1, 0},
		{"時間4", 1, 4},
	}

	svc := newTestService(&mockCartRepo{}, &mockProjectRepo{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Add(context.Background(), "alice", 1, tt.slots, tt.hours)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidQuantity {
				t.Fatalf("expected INVALID_QUANTITY, got %v", err)
			}
		})
	}
}

// 存在しない・無効化済みプロジェクトの追加が拒否されることを検証
func TestService_Add_ProjectNotFound(t *testing.T) {
	tests := []struct {
		name    string
		project *model.Project
	}{
		{"存在しない", nil},
		{"無効化済み", &model.Project{ID: 1, Active: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projectRepo := &mockProjectRepo{
				findByIDFn: func(ctx context.Context, id int64) (*model.Project, error) {
					return tt.project, nil
				},
			}
			svc := newTestService(&mockCartRepo{}, projectRepo)

			err := svc.Add(context.Background(), "alice", 1, 1, 1)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProjectNotFound {
				t.Fatalf("expected PROJECT_NOT_FOUND, got %v", err)
			}
		})
	}
}

// Removeがリポジトリへ委譲することを検証
func TestService_Remove(t *testing.T) {
	removed := false
	cartRepo := &mockCartRepo{
		removeFn: func(ctx context.Context, username string, projectID int64) error {
			removed = true
			return nil
		},
	}
	svc := newTestService(cartRepo, &mockProjectRepo{})

	if err := svc.Remove(context.Background(), "alice", 1); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if !removed {
		t.Error("expected cart Remove to be called")
	}
}

// Listがカート行を返すことを検証
func TestService_List(t *testing.T) {
	cartRepo := &mockCartRepo{
		listFn: func(ctx context.Context, username string) ([]model.CartItem, error) {
			return []model.CartItem{
				{ProjectID: 1, Slots: 2, Hours: 1},
				{ProjectID: 3, Slots: 1, Hours: 2},
			}, nil
		},
	}
	svc := newTestService(cartRepo, &mockProjectRepo{})

	items, err := svc.List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}
}

// 今週すでに経過した曜日のプロジェクトはステージできないことを検証
func TestService_Add_IneligibleDay(t *testing.T) {
	projectRepo := &mockProjectRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.Project, error) {
			return &model.Project{ID: id, Day: "Tue", Active: true}, nil
		},
	}
	cartRepo := &mockCartRepo{
		upsertFn: func(ctx context.Context, username string, projectID int64, slots, hours int) error {
			t.Error("Upsert should not be called for an ineligible day")
			return nil
		},
	}
	svc := newTestService(cartRepo, projectRepo)

	// 水曜日を「今日」にすると火曜は過去になる
	svc.now = func() time.Time { return time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC) }

	err := svc.Add(context.Background(), "alice", 1, 1, 1)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeIneligibleDay {
		t.Fatalf("expected INELIGIBLE_DAY, got %v", err)
	}
}

// Clearがリポジトリへ委譲し、エラーをラップすることを検証
func TestService_Clear(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		cleared := false
		cartRepo := &mockCartRepo{
			clearFn: func(ctx context.Context, username string) error {
				cleared = true
				if username != "alice" {
					t.Errorf("username = %q, want %q", username, "alice")
				}
				return nil
			},
		}
		svc := newTestService(cartRepo, &mockProjectRepo{})

		if err := svc.Clear(context.Background(), "alice"); err != nil {
			t.Fatalf("Clear returned error: %v", err)
		}
		if !cleared {
			t.Error("expected cart Clear to be called")
		}
	})

	t.Run("repository error", func(t *testing.T) {
		wantErr := errors.New("db down")
		cartRepo := &mockCartRepo{
			clearFn: func(ctx context.Context, username string) error {
				return wantErr
			},
		}
		svc := newTestService(cartRepo, &mockProjectRepo{})

		err := svc.Clear(context.Background(), "alice")
		if !errors.Is(err, wantErr) {
			t.Errorf("expected wrapped repository error, got %v", err)
		}
	})
}
