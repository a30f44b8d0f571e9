package model

import "time"

// NotifiableEvent は通知対象の1件の事実（「企業Xが求人Yを掲載した」）を表す。
// 求人掲載時にフォロワーごとに1件作成され、ダイジェスト送信のコミット時に
// EmailedAtが設定される。
type NotifiableEvent struct {
	ID          string
	UserID      string
	CompanyID   string
	CompanyName string
	JobID       string
	JobTitle    string
	CreatedAt   time.Time
	EmailedAt   *time.Time
}

// EligibleSince はイベントがダイジェストの対象かどうかを返す。
// 未配信かつ作成日時がsince以降の場合のみ対象となる。
func (e *NotifiableEvent) EligibleSince(since time.Time) bool {
	return e.EmailedAt == nil && !e.CreatedAt.Before(since)
}
