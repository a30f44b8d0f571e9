// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ダイジェスト処理、メール送信、ワーカーから利用する。
type MetricsCollector interface {
	RecordDigestsBuilt(frequency string, count int)
	RecordDigestSent(frequency string)
	RecordDigestFailed(frequency string)
	RecordEventsCommitted(frequency string, count int64)
	RecordRunDuration(frequency string, duration time.Duration)
	RecordRunSkipped(frequency string)
	RecordCleanupDeleted(count int64)
	ObserveEmailAttempt(provider string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	digestsBuilt    *prometheus.CounterVec
	digestsSent     *prometheus.CounterVec
	digestsFailed   *prometheus.CounterVec
	eventsCommitted *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runsSkipped     *prometheus.CounterVec
	cleanupDeleted  prometheus.Counter
	emailAttempts   *prometheus.CounterVec
	emailLatency    *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		digestsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_digests_built_total",
			Help: "生成されたダイジェストの合計数",
		}, []string{"frequency"}),
		digestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_digests_sent_total",
			Help: "送信に成功したダイジェストの合計数",
		}, []string{"frequency"}),
		digestsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_digests_failed_total",
			Help: "送信に失敗したダイジェストの合計数",
		}, []string{"frequency"}),
		eventsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_events_committed_total",
			Help: "配信済みとしてマークされた通知イベントの合計数",
		}, []string{"frequency"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobmatch_digest_run_duration_seconds",
			Help:    "ダイジェスト実行全体の所要時間（秒）",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"frequency"}),
		runsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_digest_runs_skipped_total",
			Help: "実行ロック取得失敗によりスキップされた定期実行の合計数",
		}, []string{"frequency"}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_notifications_cleaned_total",
			Help: "クリーンアップで削除された通知イベントの合計数",
		}),
		emailAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_email_attempts_total",
			Help: "プロバイダ・ステータスコード別のメール送信試行数",
		}, []string{"provider", "status_code"}),
		emailLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobmatch_email_attempt_latency_seconds",
			Help:    "メール送信1試行あたりのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}

	reg.MustRegister(
		c.digestsBuilt,
		c.digestsSent,
		c.digestsFailed,
		c.eventsCommitted,
		c.runDuration,
		c.runsSkipped,
		c.cleanupDeleted,
		c.emailAttempts,
		c.emailLatency,
	)

	return c
}

// RecordDigestsBuilt は生成されたダイジェスト数を記録する。
func (c *Collector) RecordDigestsBuilt(frequency string, count int) {
	c.digestsBuilt.WithLabelValues(frequency).Add(float64(count))
}

// RecordDigestSent は送信成功を記録する。
func (c *Collector) RecordDigestSent(frequency string) {
	c.digestsSent.WithLabelValues(frequency).Inc()
}

// RecordDigestFailed は送信失敗を記録する。
func (c *Collector) RecordDigestFailed(frequency string) {
	c.digestsFailed.WithLabelValues(frequency).Inc()
}

// RecordEventsCommitted は配信済みマークされたイベント数を記録する。
func (c *Collector) RecordEventsCommitted(frequency string, count int64) {
	c.eventsCommitted.WithLabelValues(frequency).Add(float64(count))
}

// RecordRunDuration はダイジェスト実行の所要時間を記録する。
func (c *Collector) RecordRunDuration(frequency string, duration time.Duration) {
	c.runDuration.WithLabelValues(frequency).Observe(duration.Seconds())
}

// RecordRunSkipped は定期実行のスキップを記録する。
func (c *Collector) RecordRunSkipped(frequency string) {
	c.runsSkipped.WithLabelValues(frequency).Inc()
}

// RecordCleanupDeleted はクリーンアップでの削除件数を記録する。
func (c *Collector) RecordCleanupDeleted(count int64) {
	c.cleanupDeleted.Add(float64(count))
}

// ObserveEmailAttempt はメール送信1試行の結果を記録する。
// statusCodeが0の場合はトランスポートエラーとして "error" ラベルで記録する。
func (c *Collector) ObserveEmailAttempt(provider string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.emailAttempts.WithLabelValues(provider, status).Inc()
	c.emailLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
