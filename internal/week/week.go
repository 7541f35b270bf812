// Package week はプロジェクト実施曜日の有効性判定を提供する。
//
// プロジェクトの曜日トークン（Mon..Sun）と指定タイムゾーンの「今日」を
// ISO序数（月曜=1..日曜=7）に写像し、トークンの序数が今日の序数以上で
// ある場合のみ有効とする。つまり今週すでに経過した曜日は無効になる。
// 状態を持たない純粋関数であり、並行呼び出しに安全。
package week

import "time"

// ordinals は曜日トークンからISO序数への写像。
// 未知のトークンは写像に存在せず、常に無効（fail closed）と判定される。
var ordinals = map[string]int{
	"Mon": 1,
	"Tue": 2,
	"Wed": 3,
	"Thu": 4,
	"Fri": 5,
	"Sat": 6,
	"Sun": 7,
}

// Ordinal は曜日トークンのISO序数（月曜=1..日曜=7）を返す。
// 未知のトークンの場合は0とfalseを返す。
func Ordinal(day string) (int, bool) {
	n, ok := ordinals[day]
	return n, ok
}

// IsAllowedAt は基準時刻nowにおいて曜日トークンdayが今週まだ有効かを返す。
// カートへの追加時と確定時の両方で呼ばれる。確定時にも再評価するのは、
// ステージングから確定までの間に日付が進んでいる可能性があるため。
func IsAllowedAt(day string, now time.Time) bool {
	target, ok := ordinals[day]
	if !ok {
		return false
	}

	today := isoWeekday(now.Weekday())
	return target >= today
}

// isoWeekday はtime.Weekday（日曜=0）をISO序数（月曜=1..日曜=7）に変換する。
func isoWeekday(w time.Weekday) int {
	if w == time.Sunday {
		return 7
	}
	return int(w)
}
