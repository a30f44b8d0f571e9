package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

// デフォルトのプロバイダエンドポイント
const (
	DefaultResendURL  = "https://api.resend.com/emails"
	DefaultMailjetURL = "https://api.mailjet.com/v3.1/send"
)

// Provider はメールプロバイダごとのHTTPリクエスト形式を定義する。
// 1回の送信試行ごとに新しいリクエストを生成する。
type Provider interface {
	// Name はメトリクスとログに使用するプロバイダ名を返す。
	Name() string
	// NewRequest は送信用のHTTPリクエストを生成する。
	NewRequest(ctx context.Context, creds Credentials, msg Message) (*http.Request, error)
}

// Credentials はプロバイダの認証情報と送信元アドレス。
type Credentials struct {
	APIKey string
	From   string
}

// ResendProvider はResend互換のJSON APIにメールを送信する。
type ResendProvider struct {
	endpoint string
}

// NewResendProvider はResendProviderを生成する。
// endpointが空の場合はDefaultResendURLを使用する。
func NewResendProvider(endpoint string) *ResendProvider {
	if endpoint == "" {
		endpoint = DefaultResendURL
	}
	return &ResendProvider{endpoint: endpoint}
}

// resendRequest はResend APIのリクエストボディ。
type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// Name はプロバイダ名を返す。
func (p *ResendProvider) Name() string { return "resend" }

// NewRequest はBearer認証のJSON POSTリクエストを生成する。
func (p *ResendProvider) NewRequest(ctx context.Context, creds Credentials, msg Message) (*http.Request, error) {
	body, err := json.Marshal(resendRequest{
		From:    creds.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	if msg.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", msg.IdempotencyKey)
	}

	return req, nil
}

// MailjetProvider はMailjet Send API v3.1にメールを送信する。
// APIキーは "公開キー:秘密キー" の形式で指定する。
type MailjetProvider struct {
	endpoint string
}

// NewMailjetProvider はMailjetProviderを生成する。
// endpointが空の場合はDefaultMailjetURLを使用する。
func NewMailjetProvider(endpoint string) *MailjetProvider {
	if endpoint == "" {
		endpoint = DefaultMailjetURL
	}
	return &MailjetProvider{endpoint: endpoint}
}

// Name はプロバイダ名を返す。
func (p *MailjetProvider) Name() string { return "mailjet" }

// NewRequest はBasic認証のMessages形式リクエストを生成する。
// 冪等キーはCustomIDとして渡す。
func (p *MailjetProvider) NewRequest(ctx context.Context, creds Credentials, msg Message) (*http.Request, error) {
	public, private, ok := strings.Cut(creds.APIKey, ":")
	if !ok || public == "" || private == "" {
		return nil, &ConfigError{Reason: "Mailjetのキーは 公開キー:秘密キー の形式で指定してください"}
	}

	from := mailjet.RecipientV31{Email: creds.From}
	if addr, err := mail.ParseAddress(creds.From); err == nil {
		from = mailjet.RecipientV31{Email: addr.Address, Name: addr.Name}
	}

	payload := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From:     &from,
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: msg.To}},
		Subject:  msg.Subject,
		TextPart: msg.Text,
		HTMLPart: msg.HTML,
		CustomID: msg.IdempotencyKey,
	}}}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(public, private)

	return req, nil
}

// NewProvider はプロバイダ名からProviderを生成する。
// 未知の名前の場合はConfigErrorを返す。
func NewProvider(name, endpoint string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "resend":
		return NewResendProvider(endpoint), nil
	case "mailjet":
		return NewMailjetProvider(endpoint), nil
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("未対応のメールプロバイダです: %q", name)}
	}
}
