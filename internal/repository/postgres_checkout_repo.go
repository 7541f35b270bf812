package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/hitoshi/volman/internal/model"
)

// PostgresCheckoutRepo はカート確定の原子的トランザクションを実行する。
//
// 容量カウンタは全ユーザーで共有される唯一の競合リソースであり、
// その更新はこのリポジトリのトランザクション内に限定される。
// 素朴な「残り枠を読んでから更新する」方式は、2つのトランザクションが
// 同じスナップショットを読むことで定員超過を許してしまう。ここでは
// SELECT ... FOR UPDATE による行ロックで読み取りと条件付き更新を
// 他の確定トランザクションに対して不可分にしている。
type PostgresCheckoutRepo struct {
	db *sql.DB
}

// NewPostgresCheckoutRepo はPostgresCheckoutRepoを生成する。
func NewPostgresCheckoutRepo(db *sql.DB) *PostgresCheckoutRepo {
	return &PostgresCheckoutRepo{db: db}
}

// ConfirmCart はitemsを1つのトランザクションで登録に変換する。
//
// 2つの確定が重なるプロジェクト集合を異なる順序でロックするとデッドロック
// になるため、必ずproject_id昇順でロックを取得する。各プロジェクトの
// total/registeredはトランザクション内で再読し、確定前のキャッシュ値は
// 信用しない。1件でも枠不足があれば登録は1件も作られず、カートも残る。
func (r *PostgresCheckoutRepo) ConfirmCart(ctx context.Context, username string, items []model.CartItem) ([]int64, error) {
	if len(items) == 0 {
		return nil, model.NewEmptyCartError()
	}

	sorted := make([]model.CartItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProjectID < sorted[j].ProjectID })

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	regIDs := make([]int64, 0, len(sorted))
	for _, item := range sorted {
		// プロジェクト行を排他ロックして現在値を再読する
		var totalSlots, registeredSlots int
		var hourlyRate float64
		var active bool
		err := tx.QueryRowContext(ctx,
			`SELECT total_slots, registered_slots, hourly_rate, active
			 FROM projects
			 WHERE id = $1
			 FOR UPDATE`,
			item.ProjectID,
		).Scan(&totalSlots, &registeredSlots, &hourlyRate, &active)
		if err == sql.ErrNoRows {
			// ステージング後にカタログから消えた場合も枠不足として扱う
			return nil, model.NewInsufficientSlotsError(item.ProjectID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock project row: %w", err)
		}

		available := totalSlots - registeredSlots
		if !active || item.Slots > available {
			return nil, model.NewInsufficientSlotsError(item.ProjectID)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET registered_slots = registered_slots + $1 WHERE id = $2`,
			item.Slots, item.ProjectID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to increment registered slots: %w", err)
		}

		totalValue := hourlyRate * float64(item.Hours) * float64(item.Slots)
		var regID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO registrations (username, project_id, slots, hours, confirmed_at, total_value)
			 VALUES ($1, $2, $3, $4, now(), $5)
			 RETURNING id`,
			username, item.ProjectID, item.Slots, item.Hours, totalValue,
		).Scan(&regID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert registration: %w", err)
		}

		regIDs = append(regIDs, regID)
	}

	// 同一トランザクション内でカートを空にする
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE username = $1`,
		username,
	); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return regIDs, nil
}

// compile-time interface check
var _ CheckoutRepository = (*PostgresCheckoutRepo)(nil)
