// Package cart はカートステージングのドメインロジックを提供する。
//
// カートへの追加・削除は容量を一切変更しない。閲覧中に表示される
// 残り枠はアドバイザリであり、予約の保持（ホールド）は確定時まで
// 行わない。容量チェックは意図的に確定時まで遅延される。
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/volman/internal/model"
	"github.com/hitoshi/volman/internal/repository"
	"github.com/hitoshi/volman/internal/week"
)

// 1ユーザー・1プロジェクトあたりの枠数・時間の上限。
const (
	maxSlotsPerItem = 3
	maxHoursPerItem = 3
)

// Service はカートステージングのサービス層。
type Service struct {
	cartRepo    repository.CartRepository
	projectRepo repository.ProjectRepository
	zone        *time.Location
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// zoneは曜日判定に使うタイムゾーン。nilの場合はUTC。
func NewService(cartRepo repository.CartRepository, projectRepo repository.ProjectRepository, zone *time.Location) *Service {
	if zone == nil {
		zone = time.UTC
	}
	return &Service{
		cartRepo:    cartRepo,
		projectRepo: projectRepo,
		zone:        zone,
		now:         time.Now,
	}
}

// Add はプロジェクトをカートにステージする。
// 同一プロジェクトが既にカートにある場合は枠数・時間を上書きする。
// 枠数・時間は1..3の範囲で、実施曜日は今週まだ有効かを検証するが、
// 残り枠のチェックは行わない。曜日は確定時にも再評価される。
func (s *Service) Add(ctx context.Context, username string, projectID int64, slots, hours int) error {
	if slots < 1 || slots > maxSlotsPerItem {
		return model.NewInvalidQuantityError("slots", slots)
	}
	if hours < 1 || hours > maxHoursPerItem {
		return model.NewInvalidQuantityError("hours", hours)
	}

	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil || !project.Active {
		return model.NewProjectNotFoundError(projectID)
	}
	if !week.IsAllowedAt(project.Day, s.now().In(s.zone)) {
		return model.NewIneligibleDayError(project.Day)
	}

	if err := s.cartRepo.Upsert(ctx, username, projectID, slots, hours); err != nil {
		return fmt.Errorf("カートへの追加に失敗しました: %w", err)
	}

	return nil
}

// Remove はカートから指定プロジェクトの行を削除する。
func (s *Service) Remove(ctx context.Context, username string, projectID int64) error {
	if err := s.cartRepo.Remove(ctx, username, projectID); err != nil {
		return fmt.Errorf("カートからの削除に失敗しました: %w", err)
	}
	return nil
}

// List はユーザーのカート行を追加順で返す。
func (s *Service) List(ctx context.Context, username string) ([]model.CartItem, error) {
	items, err := s.cartRepo.ListByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("カートの取得に失敗しました: %w", err)
	}
	return items, nil
}

// Clear はユーザーのカートを空にする。確定とは無関係の明示操作であり、
// 容量には一切触れない。
func (s *Service) Clear(ctx context.Context, username string) error {
	if err := s.cartRepo.Clear(ctx, username); err != nil {
		return fmt.Errorf("カートのクリアに失敗しました: %w", err)
	}
	return nil
}
