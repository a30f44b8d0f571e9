package email

import (
	"context"
	"log/slog"
)

// LogSender はメールを送信せずログに出力する。ローカル開発用。
type LogSender struct {
	from   string
	logger *slog.Logger
}

// NewLogSender はLogSenderを生成する。
func NewLogSender(from string, logger *slog.Logger) *LogSender {
	return &LogSender{from: from, logger: logger}
}

// Validate は送信元アドレスのみ検証する。
func (s *LogSender) Validate() error {
	if !ValidFromAddress(s.from) {
		return &ConfigError{Reason: "EMAIL_FROM の形式が不正です"}
	}
	return nil
}

// Send はメール内容をログに出力する。
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "メール送信（ログ出力のみ）",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("idempotency_key", msg.IdempotencyKey),
		slog.Int("text_bytes", len(msg.Text)),
	)
	return nil
}
