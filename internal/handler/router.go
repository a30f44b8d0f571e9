package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	DigestRunner DigestRunner
	CronSecret   string
	RateLimiter  *middleware.RateLimiter
	Pinger       Pinger
	Gatherer     prometheus.Gatherer
	Logger       *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → SecurityHeaders
//
// トリガーエンドポイントには追加で RateLimit → CronSecret を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := newBaseRouter(deps.Pinger, deps.Gatherer, deps.Logger)

	digestHandler := NewDigestHandler(deps.DigestRunner, deps.Logger)

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Use(middleware.NewCronSecretMiddleware(deps.CronSecret, deps.Logger))

		r.Get("/api/notifications/digest", digestHandler.Trigger)
		r.Post("/api/notifications/digest", digestHandler.Trigger)
	})

	return r
}

// NewOpsRouter は /health と /metrics のみを公開するルーターを返す。
// ワーカープロセスの監視用。
func NewOpsRouter(pinger Pinger, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	return newBaseRouter(pinger, gatherer, logger)
}

func newBaseRouter(pinger Pinger, gatherer prometheus.Gatherer, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", NewHealthHandler(pinger, logger).Health)
	if gatherer != nil {
		r.Handle("/metrics", metrics.Handler(gatherer))
	}

	return r
}
