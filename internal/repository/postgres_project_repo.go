package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/volman/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

const projectColumns = `id, title, location, day, hourly_rate, total_slots, registered_slots, active`

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id int64) (*model.Project, error) {
	p := &model.Project{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Title, &p.Location, &p.Day, &p.HourlyRate, &p.TotalSlots, &p.RegisteredSlots, &p.Active)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by ID: %w", err)
	}

	return p, nil
}

// ListActive は有効なプロジェクトを title, location, day 順で返す。
func (r *PostgresProjectRepo) ListActive(ctx context.Context) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE active ORDER BY title, location, day`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active projects: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows)
}

// ListAll は無効化済みを含む全プロジェクトを返す。管理画面用。
func (r *PostgresProjectRepo) ListAll(ctx context.Context) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY active DESC, title, location, day`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows)
}

// Available は指定プロジェクトの残り枠数を返す。
// プロジェクトが存在しない場合はPROJECT_NOT_FOUNDを返す。
// 読み取り専用のアドバイザリ値であり、予約を保持しない。
func (r *PostgresProjectRepo) Available(ctx context.Context, id int64) (int, error) {
	var available int
	err := r.db.QueryRowContext(ctx,
		`SELECT GREATEST(total_slots - registered_slots, 0) FROM projects WHERE id = $1`,
		id,
	).Scan(&available)

	if err == sql.ErrNoRows {
		return 0, model.NewProjectNotFoundError(id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read availability: %w", err)
	}

	return available, nil
}

// Upsert は (title, location, day) をキーにプロジェクトを登録・更新する。
func (r *PostgresProjectRepo) Upsert(ctx context.Context, p *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (title, location, day, hourly_rate, total_slots, registered_slots, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (title, location, day)
		 DO UPDATE SET hourly_rate = EXCLUDED.hourly_rate,
		               total_slots = EXCLUDED.total_slots,
		               registered_slots = EXCLUDED.registered_slots,
		               active = EXCLUDED.active`,
		p.Title, p.Location, p.Day, p.HourlyRate, p.TotalSlots, p.RegisteredSlots, p.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// SetActive はプロジェクトの有効フラグを切り替える。
func (r *PostgresProjectRepo) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET active = $1 WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set project active flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewProjectNotFoundError(id)
	}
	return nil
}

// scanProjects は行セットを走査してプロジェクトのスライスを返す。
func scanProjects(rows *sql.Rows) ([]*model.Project, error) {
	var projects []*model.Project
	for rows.Next() {
		p := &model.Project{}
		if err := rows.Scan(&p.ID, &p.Title, &p.Location, &p.Day, &p.HourlyRate, &p.TotalSlots, &p.RegisteredSlots, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
