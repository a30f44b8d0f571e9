// Package email はダイジェストメールの送信機能を提供する。
//
// Senderは送信設定を検証したうえでプロバイダのHTTP APIを呼び出し、
// 429と5xxに対しては指数バックオフで再試行する。
package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// デフォルトのリトライ設定
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultTimeout    = 10 * time.Second

	// maxErrorBodyBytes はエラー時に保持するレスポンス本文の上限。
	maxErrorBodyBytes = 4096
)

// fromAddressPattern は "addr@example.com" または "Name <addr@example.com>" に一致する。
var fromAddressPattern = regexp.MustCompile(`^(?:[^<>]*<)?[^\s@<>]+@[^\s@<>]+\.[^\s@<>]+>?$`)

// Message は1通のメール送信内容を表す。
type Message struct {
	To             string
	Subject        string
	HTML           string
	Text           string
	IdempotencyKey string
}

// AttemptRecorder は送信試行の結果を記録するインターフェース。
// statusCodeはトランスポートエラーの場合0。
type AttemptRecorder interface {
	ObserveEmailAttempt(provider string, statusCode int, duration time.Duration)
}

// Config はSenderの設定を保持する。
type Config struct {
	APIKey     string
	From       string
	MaxRetries int           // 初回送信後の最大再試行回数
	BaseDelay  time.Duration // 初回再試行までの待機時間。以降は2倍ずつ増加する
	Timeout    time.Duration // 1回のHTTPリクエストのタイムアウト
}

// Sender はプロバイダ経由でメールを送信する。
type Sender struct {
	provider Provider
	client   *http.Client
	logger   *slog.Logger
	recorder AttemptRecorder
	config   Config

	// onDelay は再試行前の待機時間を通知する。テストで差し替える。
	onDelay func(attempt uint, delay time.Duration)
}

// NewSender はSenderを生成する。
// recorderがnilの場合は記録を行わない。
func NewSender(provider Provider, cfg Config, recorder AttemptRecorder, logger *slog.Logger) *Sender {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Sender{
		provider: provider,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		recorder: recorder,
		config:   cfg,
	}
}

// Validate は送信に必要な設定を検証する。
// APIキーが空、または送信元アドレスが不正な場合はConfigErrorを返す。
func (s *Sender) Validate() error {
	if strings.TrimSpace(s.config.APIKey) == "" {
		return &ConfigError{Reason: "EMAIL_API_KEY が設定されていません"}
	}
	if !ValidFromAddress(s.config.From) {
		return &ConfigError{Reason: fmt.Sprintf("EMAIL_FROM の形式が不正です: %q", s.config.From)}
	}
	return nil
}

// ValidFromAddress は送信元アドレスの形式を検証する。
// 山括弧を使う場合は開きと閉じが対になっている必要がある。
func ValidFromAddress(from string) bool {
	from = strings.TrimSpace(from)
	if from == "" || !fromAddressPattern.MatchString(from) {
		return false
	}
	opened := strings.Contains(from, "<")
	closed := strings.HasSuffix(from, ">")
	return opened == closed
}

// Send はメールを送信する。
// 送信設定が不正な場合は再試行せずConfigErrorを返す。
// 429と5xx、およびトランスポートエラーは最大MaxRetries回まで再試行する。
// 最終的に失敗した場合、最後に受け取ったステータスと本文を含むエラーを返す。
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if err := s.Validate(); err != nil {
		return err
	}

	creds := Credentials{APIKey: s.config.APIKey, From: strings.TrimSpace(s.config.From)}
	attempts := uint(1 + s.config.MaxRetries)

	err := retry.Do(
		func() error {
			return s.attempt(ctx, creds, msg)
		},
		retry.Attempts(attempts),
		retry.Delay(s.config.BaseDelay),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			delay := retry.BackOffDelay(n, err, config)
			if s.onDelay != nil {
				s.onDelay(n+1, delay)
			}
			return delay
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("メール送信に失敗しました",
				slog.String("provider", s.provider.Name()),
				slog.Int("attempt", int(n)+1),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("メール送信に失敗しました（%s）: %w", s.provider.Name(), err)
	}

	return nil
}

// attempt は1回分の送信を行う。
func (s *Sender) attempt(ctx context.Context, creds Credentials, msg Message) error {
	req, err := s.provider.NewRequest(ctx, creds, msg)
	if err != nil {
		return retry.Unrecoverable(err)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		s.record(0, duration)
		return fmt.Errorf("メールプロバイダへのリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	s.record(resp.StatusCode, duration)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func (s *Sender) record(statusCode int, duration time.Duration) {
	if s.recorder != nil {
		s.recorder.ObserveEmailAttempt(s.provider.Name(), statusCode, duration)
	}
}

// isRetryable は再試行すべきエラーかどうかを判定する。
func isRetryable(err error) bool {
	if errors.Is(err, ErrConfig) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Retryable()
	}
	return true
}
