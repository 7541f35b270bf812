package model

import "time"

// CartItem はユーザーがステージングした未確定の枠リクエストを表す。
// (username, project) につき1行で、同一プロジェクトの再追加は上書きになる。
// 確定されるまで容量には一切影響しない。
type CartItem struct {
	Username   string
	ProjectID  int64
	Slots      int // 1..3
	Hours      int // 1..3
	AddedAt    time.Time
	// 表示用にprojectsから結合される属性
	Title      string
	Location   string
	Day        string
	HourlyRate float64
}

// TotalValue はこの行の金額（時給 × 時間 × 枠数）を返す。
func (c *CartItem) TotalValue() float64 {
	return c.HourlyRate * float64(c.Hours) * float64(c.Slots)
}
