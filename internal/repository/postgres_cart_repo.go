package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/volman/internal/model"
)

// PostgresCartRepo はPostgreSQLを使用したカートリポジトリ。
// カート行はユーザーごとに分割されており、ユーザー間の競合は発生しない。
type PostgresCartRepo struct {
	db *sql.DB
}

// NewPostgresCartRepo はPostgresCartRepoを生成する。
func NewPostgresCartRepo(db *sql.DB) *PostgresCartRepo {
	return &PostgresCartRepo{db: db}
}

// Upsert は (username, project) の行を追加または上書きする。
// 同一プロジェクトの再追加は行を複製せず、枠数・時間・追加時刻を置き換える。
func (r *PostgresCartRepo) Upsert(ctx context.Context, username string, projectID int64, slots, hours int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cart_items (username, project_id, slots, hours, added_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (username, project_id)
		 DO UPDATE SET slots = EXCLUDED.slots,
		               hours = EXCLUDED.hours,
		               added_at = now()`,
		username, projectID, slots, hours,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

// Remove は指定行を削除する。行が存在しなくてもエラーにならない。
func (r *PostgresCartRepo) Remove(ctx context.Context, username string, projectID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE username = $1 AND project_id = $2`,
		username, projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// ListByUser はユーザーのカート行をプロジェクト情報結合済みで返す。
func (r *PostgresCartRepo) ListByUser(ctx context.Context, username string) ([]model.CartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.username, c.project_id, c.slots, c.hours, c.added_at,
		        p.title, p.location, p.day, p.hourly_rate
		 FROM cart_items c
		 JOIN projects p ON p.id = c.project_id
		 WHERE c.username = $1
		 ORDER BY c.added_at, c.project_id`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.Username, &item.ProjectID, &item.Slots, &item.Hours, &item.AddedAt,
			&item.Title, &item.Location, &item.Day, &item.HourlyRate); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}

	return items, nil
}

// Clear はユーザーの全カート行を削除する。
func (r *PostgresCartRepo) Clear(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE username = $1`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CartRepository = (*PostgresCartRepo)(nil)
