// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 呼び出し元に返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInvalidFrequency = "INVALID_FREQUENCY"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeConfig           = "CONFIG_ERROR"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewUnauthorizedError は共有シークレット不一致エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "x-cron-secret ヘッダーまたは Authorization: Bearer に正しいシークレットを指定してください。",
	}
}

// NewInvalidFrequencyError は無効な配信頻度エラーを生成する。
func NewInvalidFrequencyError(frequency string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFrequency,
		Message:  fmt.Sprintf("無効な配信頻度です: %q", frequency),
		Category: "validation",
		Action:   "frequency には DAILY または WEEKLY を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディの形式不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの形式が不正です: %s", reason),
		Category: "validation",
		Action:   `JSONボディは {"frequency":"DAILY","commit":true} の形式で送信してください。`,
	}
}

// NewConfigError はサーバー設定不備エラーを生成する。
// 詳細な原因はログにのみ記録し、メッセージには含めない。
func NewConfigError() *APIError {
	return &APIError{
		Code:     ErrCodeConfig,
		Message:  "サーバーの設定が不足しています。",
		Category: "system",
		Action:   "CRON_SECRET、EMAIL_API_KEY、EMAIL_FROM の設定を確認してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
