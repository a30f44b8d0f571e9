package email

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrConfig は送信設定の不備を表すセンチネルエラー。
// errors.Is(err, ErrConfig) で判定する。
var ErrConfig = errors.New("メール送信設定が不正です")

// ConfigError は送信前の設定検証で検出された不備を表す。
// 設定不備は再試行しても解消しないため、リトライ対象外とする。
type ConfigError struct {
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfig.Error(), e.Reason)
}

// Is はErrConfigとの比較を可能にする。
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// DeliveryError はメールプロバイダが2xx以外を返したことを表す。
type DeliveryError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
// 最後に受け取ったステータスコードとレスポンス本文を含む。
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("メールプロバイダがステータス %d を返しました: %s", e.StatusCode, e.Body)
}

// Retryable は再試行で回復し得るステータスかどうかを返す。
// 429と5xxのみ再試行し、それ以外の4xxは即座に失敗とする。
func (e *DeliveryError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
