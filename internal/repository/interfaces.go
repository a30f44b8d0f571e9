// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/jobmatch/internal/model"
)

// SubscriberRepository はダイジェスト購読者の参照インターフェース。
type SubscriberRepository interface {
	// ListByFrequency は通知頻度がfrequencyに一致し、
	// メールアドレスが空でないユーザーを取得する。
	ListByFrequency(ctx context.Context, frequency model.Frequency) ([]*model.Subscriber, error)
}

// NotificationRepository は通知イベントの永続化インターフェース。
type NotificationRepository interface {
	// ListPendingForUser は指定ユーザーの未配信イベントのうち、
	// created_at >= since のものを作成日時の降順で取得する。
	ListPendingForUser(ctx context.Context, userID string, since time.Time) ([]*model.NotifiableEvent, error)

	// MarkEmailed は指定イベント群のemailed_atを一括で設定する。
	// 設定済みの行は変更しない（冪等）。更新件数を返す。
	MarkEmailed(ctx context.Context, ids []string, emailedAt time.Time) (int64, error)
}

// RunLocker はダイジェスト実行の排他ロックを提供するインターフェース。
type RunLocker interface {
	// TryLock はkeyに対するロックの取得を試みる。
	// 取得できなかった場合はacquired=falseを返す。
	// 取得できた場合は解放用の関数を返す。
	TryLock(ctx context.Context, key string) (unlock func(), acquired bool, err error)
}

