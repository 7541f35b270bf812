package model

import "time"

// Registration は確定済みの参加登録を表す。
// 作成後は不変で、更新・削除されない（追記専用の台帳）。
type Registration struct {
	ID          int64
	Username    string
	ProjectID   int64
	Slots       int
	Hours       int
	ConfirmedAt time.Time
	TotalValue  float64
}
