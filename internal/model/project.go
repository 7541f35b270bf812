// Package model はドメインモデルを定義する。
package model

// Project は曜日指定・定員付きのボランティアプロジェクトを表す。
// RegisteredSlotsはConfirmationエンジンのトランザクション内でのみ増加し、
// 常に 0 <= RegisteredSlots <= TotalSlots を満たす。
type Project struct {
	ID              int64
	Title           string
	Location        string
	Day             string // Mon..Sun
	HourlyRate      float64
	TotalSlots      int
	RegisteredSlots int
	Active          bool
}

// AvailableSlots は残り枠数を返す。導出値であり、保存されない。
func (p *Project) AvailableSlots() int {
	avail := p.TotalSlots - p.RegisteredSlots
	if avail < 0 {
		return 0
	}
	return avail
}
