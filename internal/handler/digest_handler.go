package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/jobmatch/internal/email"
	"github.com/hitoshi/jobmatch/internal/middleware"
	"github.com/hitoshi/jobmatch/internal/model"
)

// maxRequestBodyBytes はトリガーリクエストボディの上限。
const maxRequestBodyBytes = 1 << 16

// DigestRunner はダイジェスト実行のインターフェース。
type DigestRunner interface {
	Run(ctx context.Context, freq model.Frequency, commit bool) (*model.RunResult, error)
}

// DigestHandler はダイジェスト実行トリガーのHTTPハンドラー。
type DigestHandler struct {
	runner DigestRunner
	logger *slog.Logger
}

// NewDigestHandler はDigestHandlerを生成する。
func NewDigestHandler(runner DigestRunner, logger *slog.Logger) *DigestHandler {
	return &DigestHandler{runner: runner, logger: logger}
}

// digestRequest はPOSTリクエストのボディ。
// commitは真偽値・文字列・数値のいずれも受け付ける。
type digestRequest struct {
	Frequency string          `json:"frequency"`
	Commit    json.RawMessage `json:"commit"`
}

// Trigger はダイジェストを生成・送信し、集計結果を返す。
// GET  /api/notifications/digest?frequency=DAILY&commit=true
// POST /api/notifications/digest {"frequency":"WEEKLY","commit":true}
func (h *DigestHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	rawFreq, commit, apiErr := parseDigestParams(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	freq, err := model.ParseFrequency(rawFreq)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidFrequencyError(rawFreq))
		return
	}

	// 送信開始後のクライアント切断で配信済みマークが失われないよう切り離す
	result, err := h.runner.Run(context.WithoutCancel(r.Context()), freq, commit)
	if err != nil {
		h.handleRunError(w, freq, result, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRunError は実行エラーをHTTPレスポンスに変換する。
// resultがnilでない場合は送信済みの集計をログに残す。
func (h *DigestHandler) handleRunError(w http.ResponseWriter, freq model.Frequency, result *model.RunResult, err error) {
	if errors.Is(err, email.ErrConfig) {
		h.logger.Error("メール送信設定が不正です",
			slog.String("frequency", string(freq)),
			slog.String("error", err.Error()),
		)
		middleware.WriteConfigError(w)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	}

	attrs := []any{
		slog.String("frequency", string(freq)),
		slog.String("error", err.Error()),
	}
	if result != nil {
		attrs = append(attrs, slog.Int("sent", result.Sent), slog.Int("failed", result.Failed))
	}
	h.logger.Error("ダイジェスト実行に失敗しました", attrs...)
	middleware.WriteInternalServerError(w)
}

// parseDigestParams はクエリまたはJSONボディからfrequencyとcommitを取り出す。
// POSTでボディが空の場合はクエリパラメータを使用する。
func parseDigestParams(r *http.Request) (string, bool, *model.APIError) {
	query := r.URL.Query()
	frequency := query.Get("frequency")
	commit := ParseBoolish(query.Get("commit"))

	if r.Method != http.MethodPost || r.Body == nil {
		return frequency, commit, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		return "", false, model.NewInvalidRequestError("ボディの読み取りに失敗しました")
	}
	if len(body) > maxRequestBodyBytes {
		return "", false, model.NewInvalidRequestError("ボディが大きすぎます")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return frequency, commit, nil
	}

	var req digestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", false, model.NewInvalidRequestError("JSONの解析に失敗しました")
	}

	if req.Frequency != "" {
		frequency = req.Frequency
	}
	if len(req.Commit) > 0 {
		c, err := decodeCommit(req.Commit)
		if err != nil {
			return "", false, model.NewInvalidRequestError(err.Error())
		}
		commit = c
	}

	return frequency, commit, nil
}

// decodeCommit はJSONのcommit値を真偽値に変換する。
func decodeCommit(raw json.RawMessage) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("commitの形式が不正です")
	}
	switch c := v.(type) {
	case nil:
		return false, nil
	case bool:
		return c, nil
	case string:
		return ParseBoolish(c), nil
	case float64:
		return c == 1, nil
	default:
		return false, fmt.Errorf("commitには真偽値を指定してください")
	}
}

// ParseBoolish は true/1/yes/on（大文字小文字を区別しない）をtrueとして扱う。
// それ以外はfalse。
func ParseBoolish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// statusForAPIError はAPIErrorコードからHTTPステータスコードにマッピングする。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidFrequency, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
