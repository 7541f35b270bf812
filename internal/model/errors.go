// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, checkout, catalog, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmptyCart          = "EMPTY_CART"
	ErrCodeIneligibleDay      = "INELIGIBLE_DAY"
	ErrCodeInsufficientSlots  = "INSUFFICIENT_SLOTS"
	ErrCodeTransientStorage   = "TRANSIENT_STORAGE"
	ErrCodeIntegrityViolation = "INTEGRITY_VIOLATION"
	ErrCodeProjectNotFound    = "PROJECT_NOT_FOUND"
	ErrCodeInvalidQuantity    = "INVALID_QUANTITY"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewEmptyCartError はカートが空の状態で確定を試みた場合のエラーを生成する。
// 異常系ではなく、リトライ後の安全な正常結果としても返る。
func NewEmptyCartError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCart,
		Message:  "カートが空です。",
		Category: "checkout",
		Action:   "プロジェクトをカートに追加してから確定してください。",
	}
}

// NewIneligibleDayError はステージ済みの曜日が今週すでに経過している場合のエラーを生成する。
func NewIneligibleDayError(day string) *APIError {
	return &APIError{
		Code:     ErrCodeIneligibleDay,
		Message:  fmt.Sprintf("今週の実施曜日を過ぎた項目がカートに含まれています: %s", day),
		Category: "checkout",
		Action:   "該当の項目をカートから削除するか、来週分のプロジェクトを選び直してください。",
	}
}

// NewInsufficientSlotsError は要求枠数が残り枠数を超えている場合のエラーを生成する。
// 同時確定との競合に敗れた場合もこのエラーになる。
func NewInsufficientSlotsError(projectID int64) *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientSlots,
		Message:  fmt.Sprintf("プロジェクト %d の残り枠が不足しています。", projectID),
		Category: "checkout",
		Action:   "最新の空き状況を確認し、枠数を減らすか別のプロジェクトを選んでください。",
	}
}

// NewTransientStorageError はストレージ競合やタイムアウトによる一時的エラーを生成する。
// 確定は何も適用されていないため、再試行して安全である。
func NewTransientStorageError() *APIError {
	return &APIError{
		Code:     ErrCodeTransientStorage,
		Message:  "一時的なエラーにより確定を完了できませんでした。",
		Category: "system",
		Action:   "カートの内容は保持されています。しばらく待ってから再度確定してください。",
	}
}

// NewIntegrityViolationError は容量不変条件の違反を検出した場合のエラーを生成する。
// トランザクション規律が守られている限り到達しない。
func NewIntegrityViolationError() *APIError {
	return &APIError{
		Code:     ErrCodeIntegrityViolation,
		Message:  "容量整合性違反を検出しました。確定は適用されていません。",
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}

// NewProjectNotFoundError はプロジェクトが見つからない場合のエラーを生成する。
func NewProjectNotFoundError(projectID int64) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %d", projectID),
		Category: "cart",
		Action:   "プロジェクト一覧を再読み込みしてください。",
	}
}

// NewInvalidQuantityError は枠数・時間が許容範囲（1..3）を外れた場合のエラーを生成する。
func NewInvalidQuantityError(field string, value int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuantity,
		Message:  fmt.Sprintf("%s の値が不正です: %d", field, value),
		Category: "validation",
		Action:   "枠数・時間は1〜3の範囲で指定してください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー不存在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを指定するか、ログインしてください。",
	}
}

// NewWeakPasswordError はパスワードポリシー違反エラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "パスワードが要件を満たしていません。",
		Category: "validation",
		Action:   "8文字以上で、大文字・小文字・数字・記号をそれぞれ1文字以上含めてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
