package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/jobmatch/internal/model"
)

// CronSecretHeader はトリガー呼び出し元が共有シークレットを送るヘッダー名。
const CronSecretHeader = "x-cron-secret"

// NewCronSecretMiddleware は共有シークレットを検証するミドルウェアを返す。
//
// シークレットは x-cron-secret ヘッダー、または Authorization: Bearer で受け付け、
// 定数時間で比較する。サーバー側のシークレットが未設定の場合は500 CONFIG_ERROR、
// 不一致または未指定の場合は401 UNAUTHORIZEDを返す。
func NewCronSecretMiddleware(secret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				logger.Error("CRON_SECRET が設定されていません",
					slog.String("path", r.URL.Path),
				)
				WriteConfigError(w)
				return
			}

			provided := secretFromRequest(r)
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				logger.Warn("共有シークレットが一致しません",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// secretFromRequest はリクエストから共有シークレットを取り出す。
// x-cron-secret ヘッダーを優先する。
func secretFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(CronSecretHeader)); v != "" {
		return v
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
