// Package digest は通知ダイジェストの生成と配信を提供する。
//
// Builderは配信頻度ごとの購読者について未配信イベントを集約し、
// 企業ごとにグループ化したメール本文を生成する。
// Serviceは生成したダイジェストを送信し、commit指定時のみ配信済みとしてマークする。
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/repository"
)

// Builder は購読者ごとのダイジェストを生成する。
type Builder struct {
	subscribers   repository.SubscriberRepository
	notifications repository.NotificationRepository
	renderer      *Renderer
	logger        *slog.Logger
	now           func() time.Time
}

// NewBuilder はBuilderを生成する。
func NewBuilder(
	subscribers repository.SubscriberRepository,
	notifications repository.NotificationRepository,
	renderer *Renderer,
	logger *slog.Logger,
) *Builder {
	return &Builder{
		subscribers:   subscribers,
		notifications: notifications,
		renderer:      renderer,
		logger:        logger,
		now:           time.Now,
	}
}

// Build は指定頻度の購読者それぞれについてダイジェストを生成する。
// 対象イベントが0件の購読者は結果に含めない。
// 購読者が存在しない場合は空のスライスを返す。
// イベント取得に失敗した場合は処理全体を中断してエラーを返す。
// 取得結果のうち配信済みまたはウィンドウ外のイベントは除外する。
func (b *Builder) Build(ctx context.Context, freq model.Frequency) ([]model.DigestPayload, error) {
	if !freq.Valid() {
		return nil, model.NewInvalidFrequencyError(string(freq))
	}

	subs, err := b.subscribers.ListByFrequency(ctx, freq)
	if err != nil {
		return nil, fmt.Errorf("購読者の取得に失敗しました: %w", err)
	}

	payloads := make([]model.DigestPayload, 0, len(subs))
	if len(subs) == 0 {
		return payloads, nil
	}

	since := b.now().Add(-freq.Window())

	for _, sub := range subs {
		fetched, err := b.notifications.ListPendingForUser(ctx, sub.ID, since)
		if err != nil {
			return nil, fmt.Errorf("ユーザー %s の未配信イベントの取得に失敗しました: %w", sub.ID, err)
		}
		events := eligibleEvents(fetched, since)
		if skipped := len(fetched) - len(events); skipped > 0 {
			b.logger.Warn("対象外のイベントを除外しました",
				slog.String("user_id", sub.ID),
				slog.Int("skipped", skipped),
			)
		}
		if len(events) == 0 {
			continue
		}

		groups := GroupByCompany(events)

		eventIDs := make([]string, 0, len(events))
		for _, ev := range events {
			eventIDs = append(eventIDs, ev.ID)
		}

		payloads = append(payloads, model.DigestPayload{
			UserID:   sub.ID,
			Email:    sub.Email,
			Subject:  b.renderer.Subject(freq, len(events)),
			HTML:     b.renderer.HTML(sub, freq, groups),
			Text:     b.renderer.Text(sub, freq, groups),
			EventIDs: eventIDs,
		})
	}

	b.logger.Info("ダイジェストを生成しました",
		slog.String("frequency", string(freq)),
		slog.Int("subscribers", len(subs)),
		slog.Int("digests", len(payloads)),
	)

	return payloads, nil
}

func eligibleEvents(events []*model.NotifiableEvent, since time.Time) []*model.NotifiableEvent {
	out := events[:0:0]
	for _, ev := range events {
		if ev.EligibleSince(since) {
			out = append(out, ev)
		}
	}
	return out
}

// GroupByCompany はイベントを企業ごとにまとめる。
// グループは最初に出現した順に並び、各グループ内の求人は作成日時の降順に並べ替える。
func GroupByCompany(events []*model.NotifiableEvent) []model.CompanyGroup {
	index := make(map[string]int)
	var groups []model.CompanyGroup

	for _, ev := range events {
		i, ok := index[ev.CompanyID]
		if !ok {
			i = len(groups)
			index[ev.CompanyID] = i
			groups = append(groups, model.CompanyGroup{
				CompanyID:   ev.CompanyID,
				CompanyName: ev.CompanyName,
			})
		}
		groups[i].Jobs = append(groups[i].Jobs, model.JobEntry{
			JobID:     ev.JobID,
			JobTitle:  ev.JobTitle,
			CreatedAt: ev.CreatedAt,
		})
	}

	for i := range groups {
		jobs := groups[i].Jobs
		sort.SliceStable(jobs, func(a, b int) bool {
			return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
		})
	}

	return groups
}
