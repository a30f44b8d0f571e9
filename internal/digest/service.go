package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobmatch/internal/email"
	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/repository"
)

// commitTimeout は配信済みマークに許す最大時間。
const commitTimeout = 30 * time.Second

// DigestBuilder はダイジェスト生成のインターフェース。
type DigestBuilder interface {
	Build(ctx context.Context, freq model.Frequency) ([]model.DigestPayload, error)
}

// Mailer はメール送信のインターフェース。
// email.Sender と email.LogSender が実装する。
type Mailer interface {
	Validate() error
	Send(ctx context.Context, msg email.Message) error
}

// Service はダイジェストの生成・送信・配信済みマークを統括する。
type Service struct {
	builder       DigestBuilder
	mailer        Mailer
	notifications repository.NotificationRepository
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	now           func() time.Time
}

// NewService はServiceを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	builder DigestBuilder,
	mailer Mailer,
	notifications repository.NotificationRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		builder:       builder,
		mailer:        mailer,
		notifications: notifications,
		metrics:       collector,
		logger:        logger,
		now:           time.Now,
	}
}

// Run は指定頻度のダイジェストを生成し、購読者ごとに逐次送信する。
//
// 送信設定が不正な場合は何も生成・送信せずにemail.ErrConfigを返す。
// 個別の送信失敗は集計に含めて処理を継続する。
// commitがtrueの場合、送信に成功したダイジェストのイベントのみを
// 全送信完了後に一括で配信済みとしてマークする。
// commitがfalseの場合もメールは送信され、イベントは未配信のまま残る。
// マークに失敗した場合は送信結果の集計とエラーの両方を返す。
func (s *Service) Run(ctx context.Context, freq model.Frequency, commit bool) (*model.RunResult, error) {
	if err := s.mailer.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	label := string(freq)

	digests, err := s.builder.Build(ctx, freq)
	if err != nil {
		return nil, fmt.Errorf("ダイジェストの生成に失敗しました: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordDigestsBuilt(label, len(digests))
	}

	result := &model.RunResult{
		Frequency: freq,
		Commit:    commit,
		Count:     len(digests),
		Digests:   digests,
	}

	var toMark []string
	for _, d := range digests {
		msg := email.Message{
			To:      d.Email,
			Subject: d.Subject,
			HTML:    d.HTML,
			Text:    d.Text,
		}
		// ドライランは同じ内容の再送を許すため冪等キーを付けない
		if commit {
			msg.IdempotencyKey = IdempotencyKey(d.UserID, d.EventIDs)
		}

		if err := s.mailer.Send(ctx, msg); err != nil {
			result.Failed++
			if s.metrics != nil {
				s.metrics.RecordDigestFailed(label)
			}
			s.logger.Error("ダイジェストの送信に失敗しました",
				slog.String("user_id", d.UserID),
				slog.String("frequency", label),
				slog.String("error", err.Error()),
			)
			continue
		}

		result.Sent++
		if s.metrics != nil {
			s.metrics.RecordDigestSent(label)
		}
		if commit {
			toMark = append(toMark, d.EventIDs...)
		}
	}

	if len(toMark) > 0 {
		// 送信済みの事実は呼び出し元のキャンセル後も確定させる
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		marked, err := s.notifications.MarkEmailed(commitCtx, toMark, s.now())
		cancel()
		if err != nil {
			s.logger.Error("配信済みマークに失敗しました",
				slog.String("frequency", label),
				slog.Int("event_count", len(toMark)),
				slog.Int("sent", result.Sent),
				slog.Int("failed", result.Failed),
				slog.String("error", err.Error()),
			)
			return result, fmt.Errorf("配信済みマークに失敗しました: %w", err)
		}
		if s.metrics != nil {
			s.metrics.RecordEventsCommitted(label, marked)
		}
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordRunDuration(label, duration)
	}

	s.logger.Info("ダイジェスト実行が完了しました",
		slog.String("frequency", label),
		slog.Bool("commit", commit),
		slog.Int("count", result.Count),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
		slog.Int("committed_events", len(toMark)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return result, nil
}

// IdempotencyKey はユーザーIDとイベントID集合から決定的な冪等キーを生成する。
// 同じイベント集合を再送する場合は同じキーになる。
func IdempotencyKey(userID string, eventIDs []string) string {
	ids := append([]string(nil), eventIDs...)
	sort.Strings(ids)
	name := userID + ":" + strings.Join(ids, ",")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
