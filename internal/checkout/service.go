// Package checkout はカート確定（Confirmationエンジン）のドメインロジックを提供する。
//
// 確定はカート全体を1つの原子的な作業単位として扱う。全項目が成功して
// 登録・容量加算・カート削除がコミットされるか、1件の失敗で全体が
// ロールバックされるかのどちらかであり、部分適用は他の観測者から
// 決して見えない。
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/volman/internal/model"
	"github.com/hitoshi/volman/internal/repository"
	"github.com/hitoshi/volman/internal/week"
)

// PostgreSQLのエラーコード。トランザクションの再試行可否の分類に使用する。
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqQueryCanceled        = "57014"
	pqCheckViolation       = "23514"
)

// Recorder は確定結果のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type Recorder interface {
	RecordConfirmSuccess(registrations, slots int)
	RecordConfirmRejected(code string)
	RecordConfirmLatency(d time.Duration)
}

// Service はカート確定のサービス層。
type Service struct {
	cartRepo     repository.CartRepository
	checkoutRepo repository.CheckoutRepository
	zone         *time.Location
	timeout      time.Duration
	recorder     Recorder

	// テストで時刻を固定するためのフック
	now func() time.Time
}

// Config はServiceの動作設定。
type Config struct {
	// Zone は曜日の有効性判定に使用するタイムゾーン。
	Zone *time.Location
	// Timeout は確定処理全体の上限時間。ゼロの場合は5秒。
	Timeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよく、その場合メトリクスは記録されない。
func NewService(cartRepo repository.CartRepository, checkoutRepo repository.CheckoutRepository, recorder Recorder, cfg Config) *Service {
	zone := cfg.Zone
	if zone == nil {
		zone = time.UTC
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		cartRepo:     cartRepo,
		checkoutRepo: checkoutRepo,
		zone:         zone,
		timeout:      timeout,
		recorder:     recorder,
		now:          time.Now,
	}
}

// Confirm はユーザーのカート全体を検証し、原子的に登録へ変換する。
//
// カートは呼び出し側のスナップショットではなく、確定時点で読み直す。
// 曜日の有効性もここで再評価する。ステージングから確定までの間に
// 日付が進んでいる可能性があるため。
//
// 返り値は新規登録IDのリスト、または理由を特定した*model.APIError。
// 失敗時はカートも容量も一切変更されない。ストレージの競合・タイムアウトは
// TRANSIENT_STORAGEとして返り、再試行して安全である。
func (s *Service) Confirm(ctx context.Context, username string) ([]int64, error) {
	start := s.now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := s.cartRepo.ListByUser(ctx, username)
	if err != nil {
		slog.Error("カートの読み取りに失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, s.rejected(model.NewTransientStorageError())
	}

	// 空カートはno-op。トランザクションは開かない。
	// クラッシュ後の再試行（コミット済み→カート空）もこの経路に入り、二重登録を防ぐ。
	if len(items) == 0 {
		return nil, s.rejected(model.NewEmptyCartError())
	}

	// 容量に触れる前に全項目の曜日を検証する。1件でも過ぎていれば
	// その項目だけを落とすのではなく、バッチ全体を拒否する。
	today := s.now().In(s.zone)
	for _, item := range items {
		if !week.IsAllowedAt(item.Day, today) {
			return nil, s.rejected(model.NewIneligibleDayError(item.Day))
		}
	}

	regIDs, err := s.checkoutRepo.ConfirmCart(ctx, username, items)
	if err != nil {
		return nil, s.rejected(s.classify(err, username))
	}

	slots := 0
	for _, item := range items {
		slots += item.Slots
	}
	if s.recorder != nil {
		s.recorder.RecordConfirmSuccess(len(regIDs), slots)
		s.recorder.RecordConfirmLatency(s.now().Sub(start))
	}

	return regIDs, nil
}

// classify はストレージ層のエラーを仕様上のエラー分類に変換する。
// ドメイン上の結果（枠不足など）はそのまま通し、競合・タイムアウトは
// 再試行可能なTRANSIENT_STORAGEに、制約違反の検出はINTEGRITY_VIOLATIONに写す。
func (s *Service) classify(err error, username string) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqSerializationFailure, pqDeadlockDetected, pqQueryCanceled:
			slog.Warn("確定トランザクションが競合により中断されました",
				slog.String("username", username),
				slog.String("pq_code", string(pqErr.Code)),
			)
			return model.NewTransientStorageError()
		case pqCheckViolation:
			// committed <= total のCHECK制約に到達した場合。トランザクション内の
			// ガードが先に弾くため、ここに来ること自体が規律違反を意味する。
			slog.Error("容量整合性違反を検出しました",
				slog.String("username", username),
				slog.String("constraint", pqErr.Constraint),
			)
			return model.NewIntegrityViolationError()
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		slog.Warn("確定トランザクションがタイムアウトしました",
			slog.String("username", username),
		)
		return model.NewTransientStorageError()
	}

	slog.Error("確定トランザクションに失敗しました",
		slog.String("username", username),
		slog.String("error", err.Error()),
	)
	return model.NewTransientStorageError()
}

// rejected は拒否理由をメトリクスに記録してそのまま返す。
func (s *Service) rejected(apiErr *model.APIError) *model.APIError {
	if s.recorder != nil {
		s.recorder.RecordConfirmRejected(apiErr.Code)
	}
	return apiErr
}
