package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュのみを保持し、平文は保存しない。
type User struct {
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	Username  string
	ExpiresAt time.Time
	CreatedAt time.Time
}
