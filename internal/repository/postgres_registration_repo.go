package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/volman/internal/model"
)

// PostgresRegistrationRepo はPostgreSQLを使用した登録台帳リポジトリ。
// 台帳は追記専用で、書き込みはCheckoutRepositoryのトランザクション内でのみ行われる。
type PostgresRegistrationRepo struct {
	db *sql.DB
}

// NewPostgresRegistrationRepo はPostgresRegistrationRepoを生成する。
func NewPostgresRegistrationRepo(db *sql.DB) *PostgresRegistrationRepo {
	return &PostgresRegistrationRepo{db: db}
}

// ListByUser はユーザーの登録履歴を confirmed_at降順, id降順 で返す。
func (r *PostgresRegistrationRepo) ListByUser(ctx context.Context, username string) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, project_id, slots, hours, confirmed_at, total_value
		 FROM registrations
		 WHERE username = $1
		 ORDER BY confirmed_at DESC, id DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var reg model.Registration
		if err := rows.Scan(&reg.ID, &reg.Username, &reg.ProjectID, &reg.Slots, &reg.Hours, &reg.ConfirmedAt, &reg.TotalValue); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}

	return regs, nil
}

// compile-time interface check
var _ RegistrationRepository = (*PostgresRegistrationRepo)(nil)
