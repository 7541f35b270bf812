// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/volman/internal/model"
)

// ProjectRepository はプロジェクトカタログの永続化インターフェース。
// registered_slotsの更新はCheckoutRepositoryのトランザクション内でのみ行われ、
// ここには容量を変更する操作を置かない。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Project, error)

	// ListActive は有効なプロジェクトを title, location, day 順で返す。
	ListActive(ctx context.Context) ([]*model.Project, error)

	// ListAll は無効化済みを含む全プロジェクトを active降順, title, location, day 順で返す。
	ListAll(ctx context.Context) ([]*model.Project, error)

	// Available は指定プロジェクトの残り枠数を返す。
	// プロジェクトが存在しない場合はPROJECT_NOT_FOUNDのAPIErrorを返す。
	Available(ctx context.Context, id int64) (int, error)

	// Upsert は (title, location, day) をキーにプロジェクトを登録・更新する。
	// カタログインポート専用。
	Upsert(ctx context.Context, p *model.Project) error

	// SetActive はプロジェクトの有効フラグを切り替える。
	SetActive(ctx context.Context, id int64, active bool) error
}

// CartRepository はカート行の永続化インターフェース。
// カート操作は容量を一切変更しない（容量チェックは確定時まで遅延される）。
type CartRepository interface {
	// Upsert は (username, project) の行を追加または上書きする。
	Upsert(ctx context.Context, username string, projectID int64, slots, hours int) error

	// Remove は指定行を削除する。行が存在しなくてもエラーにならない。
	Remove(ctx context.Context, username string, projectID int64) error

	// ListByUser はユーザーのカート行をプロジェクト情報結合済みで返す。
	// added_at昇順、同時刻はproject_id昇順。
	ListByUser(ctx context.Context, username string) ([]model.CartItem, error)

	// Clear はユーザーの全カート行を削除する。
	Clear(ctx context.Context, username string) error
}

// RegistrationRepository は確定済み登録（追記専用台帳）の読み取りインターフェース。
// 書き込みはCheckoutRepositoryのトランザクション内でのみ行われる。
type RegistrationRepository interface {
	// ListByUser はユーザーの登録履歴を confirmed_at降順, id降順 で返す。
	ListByUser(ctx context.Context, username string) ([]model.Registration, error)
}

// CheckoutRepository はカート確定の原子的トランザクションを実行する。
type CheckoutRepository interface {
	// ConfirmCart はitemsを1つのトランザクションで登録に変換する。
	//
	// project_id昇順の固定順序で各プロジェクト行をロックし、トランザクション内で
	// 再読した残り枠に対して要求枠数を検証する。1件でも不足があれば全体を
	// ロールバックし、*model.APIError（INSUFFICIENT_SLOTS）を返す。
	// 成功時は登録挿入・registered_slots加算・カート全削除をコミットし、
	// 新規登録IDを挿入順で返す。
	ConfirmCart(ctx context.Context, username string, items []model.CartItem) ([]int64, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername は指定ユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。
	// username/email重複時は *model.APIError（USERNAME_TAKEN / EMAIL_TAKEN）を返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを更新する。
	// ユーザーが存在しない場合は *model.APIError（USER_NOT_FOUND）を返す。
	UpdatePassword(ctx context.Context, username, passwordHash string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}
