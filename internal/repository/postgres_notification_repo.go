package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/jobmatch/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知イベントリポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// ListPendingForUser は指定ユーザーの未配信イベントを作成日時の降順で取得する。
// 企業名と求人タイトルはJOINで取得する。
func (r *PostgresNotificationRepo) ListPendingForUser(ctx context.Context, userID string, since time.Time) ([]*model.NotifiableEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT n.id, n.user_id, n.company_id, c.name, n.job_id, j.title, n.created_at
		 FROM notifications n
		 JOIN companies c ON c.id = n.company_id
		 JOIN jobs j ON j.id = n.job_id
		 WHERE n.user_id = $1
		   AND n.emailed_at IS NULL
		   AND n.created_at >= $2
		 ORDER BY n.created_at DESC`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("未配信イベントの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var events []*model.NotifiableEvent
	for rows.Next() {
		ev := &model.NotifiableEvent{}
		if err := rows.Scan(
			&ev.ID, &ev.UserID, &ev.CompanyID, &ev.CompanyName,
			&ev.JobID, &ev.JobTitle, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("未配信イベント行の読み取りに失敗しました: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未配信イベントの走査に失敗しました: %w", err)
	}

	return events, nil
}

// MarkEmailed は指定イベント群のemailed_atを一括で設定する。
// emailed_atが設定済みの行は対象外とするため、重複実行しても安全。
func (r *PostgresNotificationRepo) MarkEmailed(ctx context.Context, ids []string, emailedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET emailed_at = $2
		 WHERE id = ANY($1::uuid[]) AND emailed_at IS NULL`,
		pq.Array(ids), emailedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("配信済みマークの設定に失敗しました: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
