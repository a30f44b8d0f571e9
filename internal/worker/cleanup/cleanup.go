// Package cleanup は配信済み通知の自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過した配信済み通知を定期的に削除する。
// 未配信の通知は対象外。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は配信済み通知のデフォルト保持日数。
const DefaultRetentionDays = 90

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DeletedRecorder は削除件数を記録するインターフェース。
type DeletedRecorder interface {
	RecordCleanupDeleted(count int64)
}

// CleanupJob は保持期間を超過した配信済み通知の削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	db            Executor
	recorder      DeletedRecorder
	logger        *slog.Logger
	RetentionDays int // 配信済み通知の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// recorderはnilでもよい。
func NewCleanupJob(db Executor, recorder DeletedRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		recorder:      recorder,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
	}
}

// Start はintervalごとにRunを実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("通知クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	j.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("通知クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *CleanupJob) runAndLog(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("通知クリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Run はemailed_atがRetentionDays日前より古い通知を削除し、削除件数を返す。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM notifications
		WHERE emailed_at IS NOT NULL AND emailed_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		return 0, fmt.Errorf("通知クリーンアップの実行に失敗しました: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordCleanupDeleted(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("通知クリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return deletedCount, nil
}
