// Package model はドメインモデルを定義する。
package model

import "time"

// ProviderGoogle はGoogle OAuthで作成されたidentityのプロバイダー名。
const ProviderGoogle = "google"

// User はサービス利用ユーザーを表す。
// 初回OAuthログイン時に作成され、アプリケーションからは削除しない。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// (Provider, ProviderUserID) の組はユニーク。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// 有効期限は発行時に固定され、延長しない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
