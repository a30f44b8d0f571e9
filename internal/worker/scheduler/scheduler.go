// Package scheduler はダイジェストの定期実行を提供する。
// 配信頻度ごとのcron式でダイジェストを実行し、実行ごとに
// アドバイザリロックを取得して多重実行を防ぐ。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/repository"
)

// ErrRunInProgress は同じ配信頻度のダイジェストが実行中であることを示す。
var ErrRunInProgress = errors.New("同じ配信頻度のダイジェストが実行中です")

// DigestRunner はダイジェスト実行のインターフェース。
type DigestRunner interface {
	Run(ctx context.Context, freq model.Frequency, commit bool) (*model.RunResult, error)
}

// Schedule は配信頻度とcron式の組。
type Schedule struct {
	Frequency model.Frequency
	Spec      string
}

// Scheduler はcron式に従ってダイジェストを実行する。
type Scheduler struct {
	runner    DigestRunner
	locker    repository.RunLocker
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	location  *time.Location
	schedules []Schedule
}

// NewScheduler はSchedulerを生成する。
// locがnilの場合はUTCを使用する。collectorはnilでもよい。
func NewScheduler(
	runner DigestRunner,
	locker repository.RunLocker,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	loc *time.Location,
	schedules ...Schedule,
) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		runner:    runner,
		locker:    locker,
		metrics:   collector,
		logger:    logger,
		location:  loc,
		schedules: schedules,
	}
}

// LockKey は配信頻度ごとの実行ロックのキーを返す。
func LockKey(freq model.Frequency) string {
	return "digest:" + string(freq)
}

// Start はcronエンジンを起動し、コンテキストがキャンセルされるまでブロックする。
// 停止時は実行中のジョブの完了を待つ。
// cron式が不正な場合はエンジンを起動せずにエラーを返す。
func (s *Scheduler) Start(ctx context.Context) error {
	cl := cronLogger{logger: s.logger}
	engine := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	for _, sch := range s.schedules {
		freq := sch.Frequency
		if _, err := engine.AddFunc(sch.Spec, func() { s.runScheduled(ctx, freq) }); err != nil {
			return fmt.Errorf("cron式の登録に失敗しました（%s: %q）: %w", freq, sch.Spec, err)
		}
		s.logger.Info("ダイジェストのスケジュールを登録しました",
			slog.String("frequency", string(freq)),
			slog.String("spec", sch.Spec),
			slog.String("timezone", s.location.String()),
		)
	}

	engine.Start()
	s.logger.Info("ダイジェストスケジューラを開始しました")

	<-ctx.Done()

	<-engine.Stop().Done()
	s.logger.Info("ダイジェストスケジューラを停止しました")
	return nil
}

// runScheduled はcronから呼ばれる1回分の実行。常にcommit=trueで実行する。
func (s *Scheduler) runScheduled(ctx context.Context, freq model.Frequency) {
	if ctx.Err() != nil {
		return
	}
	result, err := s.RunOnce(ctx, freq, true)
	switch {
	case errors.Is(err, ErrRunInProgress):
		// RunOnceでログ出力済み
	case err != nil:
		attrs := []any{
			slog.String("frequency", string(freq)),
			slog.String("error", err.Error()),
		}
		if result != nil {
			attrs = append(attrs, slog.Int("sent", result.Sent), slog.Int("failed", result.Failed))
		}
		s.logger.Error("定期ダイジェストの実行に失敗しました", attrs...)
	default:
		s.logger.Info("定期ダイジェストの実行が完了しました",
			slog.String("frequency", string(freq)),
			slog.Int("count", result.Count),
			slog.Int("sent", result.Sent),
			slog.Int("failed", result.Failed),
		)
	}
}

// RunOnce は実行ロックを取得してダイジェストを1回実行する。
// ロックを取得できない場合はスキップし、ErrRunInProgressを返す。
func (s *Scheduler) RunOnce(ctx context.Context, freq model.Frequency, commit bool) (*model.RunResult, error) {
	unlock, acquired, err := s.locker.TryLock(ctx, LockKey(freq))
	if err != nil {
		return nil, fmt.Errorf("実行ロックの取得に失敗しました: %w", err)
	}
	if !acquired {
		s.logger.Warn("ダイジェストが実行中のためスキップしました",
			slog.String("frequency", string(freq)),
		)
		if s.metrics != nil {
			s.metrics.RecordRunSkipped(string(freq))
		}
		return nil, ErrRunInProgress
	}
	defer unlock()

	return s.runner.Run(ctx, freq, commit)
}

// cronLogger はcron.Loggerをslogに適合させる。
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err.Error())...)
}
