package digest

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/jobmatch/internal/email"
	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/security"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// memoryStore は購読者と通知イベントを保持するインメモリのリポジトリ。
// SubscriberRepositoryとNotificationRepositoryの両方を実装する。
type memoryStore struct {
	mu          sync.Mutex
	subscribers []*model.Subscriber
	events      []*model.NotifiableEvent

	// unfiltered がtrueの場合、ListPendingForUserは配信済み・期間外も含めて返す
	unfiltered bool

	listPendingErr error
	markErr        error
	markCalls      int
}

func (m *memoryStore) ListByFrequency(ctx context.Context, freq model.Frequency) ([]*model.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Subscriber
	for _, s := range m.subscribers {
		if s.Frequency == freq && s.Email != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryStore) ListPendingForUser(ctx context.Context, userID string, since time.Time) ([]*model.NotifiableEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listPendingErr != nil {
		return nil, m.listPendingErr
	}

	var out []*model.NotifiableEvent
	for _, ev := range m.events {
		if ev.UserID == userID && (m.unfiltered || ev.EligibleSince(since)) {
			copied := *ev
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryStore) MarkEmailed(ctx context.Context, ids []string, emailedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.markCalls++
	if m.markErr != nil {
		return 0, m.markErr
	}
	// database/sqlと同様にキャンセル済みのコンテキストでは実行しない
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	var n int64
	for _, ev := range m.events {
		if set[ev.ID] && ev.EmailedAt == nil {
			at := emailedAt
			ev.EmailedAt = &at
			n++
		}
	}
	return n, nil
}

// mockMailer はMailerのモック。
type mockMailer struct {
	validateFn func() error
	sendFn     func(ctx context.Context, msg email.Message) error
	sent       []email.Message
}

func (m *mockMailer) Validate() error {
	if m.validateFn != nil {
		return m.validateFn()
	}
	return nil
}

func (m *mockMailer) Send(ctx context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}
	return nil
}

// mockCollector はmetrics.MetricsCollectorのモック。
type mockCollector struct {
	built     int
	sent      int
	failed    int
	committed int64
	runs      int
}

func (m *mockCollector) RecordDigestsBuilt(frequency string, count int) { m.built += count }
func (m *mockCollector) RecordDigestSent(frequency string) { m.sent++ }
func (m *mockCollector) RecordDigestFailed(frequency string) { m.failed++ }
func (m *mockCollector) RecordEventsCommitted(frequency string, count int64) { m.committed += count }
func (m *mockCollector) RecordRunDuration(frequency string, duration time.Duration) { m.runs++ }
func (m *mockCollector) RecordRunSkipped(frequency string) {}
func (m *mockCollector) RecordCleanupDeleted(count int64) {}
func (m *mockCollector) ObserveEmailAttempt(provider string, statusCode int, duration time.Duration) {
}

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// newTestBuilder は固定時刻で動作するBuilderを生成する。
func newTestBuilder(store *memoryStore, buf *bytes.Buffer) *Builder {
	b := NewBuilder(store, store, NewRenderer("https://jobs.example.com/", security.NewTextSanitizer()), newTestLogger(buf))
	b.now = func() time.Time { return fixedNow }
	return b
}

func event(id, userID, companyID, companyName, jobID, title string, age time.Duration) *model.NotifiableEvent {
	return &model.NotifiableEvent{
		ID:          id,
		UserID:      userID,
		CompanyID:   companyID,
		CompanyName: companyName,
		JobID:       jobID,
		JobTitle:    title,
		CreatedAt:   fixedNow.Add(-age),
	}
}
