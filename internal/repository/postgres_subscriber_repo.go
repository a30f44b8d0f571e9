package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jobmatch/internal/model"
)

// PostgresSubscriberRepo はPostgreSQLを使用した購読者リポジトリ。
type PostgresSubscriberRepo struct {
	db *sql.DB
}

// NewPostgresSubscriberRepo はPostgresSubscriberRepoを生成する。
func NewPostgresSubscriberRepo(db *sql.DB) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{db: db}
}

// ListByFrequency は通知頻度がfrequencyに一致し、メールアドレスを持つユーザーを取得する。
// 取得順はcreated_at昇順（同時刻の場合はid順）で固定する。
func (r *PostgresSubscriberRepo) ListByFrequency(ctx context.Context, frequency model.Frequency) ([]*model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, name, notification_frequency
		 FROM users
		 WHERE notification_frequency = $1
		   AND email IS NOT NULL
		   AND email <> ''
		 ORDER BY created_at ASC, id ASC`,
		string(frequency),
	)
	if err != nil {
		return nil, fmt.Errorf("購読者一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subscribers []*model.Subscriber
	for rows.Next() {
		sub := &model.Subscriber{}
		var name sql.NullString
		var freq string

		if err := rows.Scan(&sub.ID, &sub.Email, &name, &freq); err != nil {
			return nil, fmt.Errorf("購読者行の読み取りに失敗しました: %w", err)
		}

		sub.Name = nullStringValue(name)
		sub.Frequency = model.Frequency(freq)
		subscribers = append(subscribers, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読者一覧の走査に失敗しました: %w", err)
	}

	return subscribers, nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ SubscriberRepository = (*PostgresSubscriberRepo)(nil)
