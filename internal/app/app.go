package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/jobmatch/internal/config"
	"github.com/hitoshi/jobmatch/internal/database"
	"github.com/hitoshi/jobmatch/internal/digest"
	"github.com/hitoshi/jobmatch/internal/email"
	"github.com/hitoshi/jobmatch/internal/handler"
	"github.com/hitoshi/jobmatch/internal/logger"
	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/middleware"
	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/repository"
	"github.com/hitoshi/jobmatch/internal/security"
	"github.com/hitoshi/jobmatch/internal/worker/cleanup"
	"github.com/hitoshi/jobmatch/internal/worker/scheduler"
)

// shutdownTimeout はHTTPサーバーのグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// 設定読み込みに失敗した場合もInfoレベルのロガーは設定済みになる。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	log := logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, log, fmt.Errorf("failed to load config: %w", err)
	}

	log = logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。ログはlogwへ、digestコマンドの集計結果はoutへ出力する。
func Run(out, logw io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// 引数の誤りはDB接続前に検出する
	var (
		freq   model.Frequency
		commit bool
	)
	if cmd == CommandDigest {
		var err error
		if freq, commit, err = ParseDigestArgs(rest); err != nil {
			return err
		}
	}

	cfg, log, err := Init(logw)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("email_provider", cfg.EmailProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, log)
	case CommandDigest:
		return runDigest(ctx, cfg, log, out, freq, commit)
	case CommandMigrate:
		return runMigrate(cfg, log)
	default:
		return runServe(ctx, cfg, log)
	}
}

// components はserve/worker/digestで共有する依存関係。
type components struct {
	db        *sql.DB
	registry  *prometheus.Registry
	collector *metrics.Collector
	service   *digest.Service
}

// newComponents はDB接続を開き、ダイジェスト処理の依存関係をワイヤリングする。
func newComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*components, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	mailer, err := newMailer(cfg, collector, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	subscriberRepo := repository.NewPostgresSubscriberRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)

	renderer := digest.NewRenderer(cfg.AppURL, security.NewTextSanitizer())
	builder := digest.NewBuilder(subscriberRepo, notificationRepo, renderer, log)
	service := digest.NewService(builder, mailer, notificationRepo, collector, log)

	return &components{
		db:        db,
		registry:  registry,
		collector: collector,
		service:   service,
	}, nil
}

// newMailer はEMAIL_PROVIDERに応じたMailerを生成する。
// "log" の場合は送信せずにログへ出力する。
func newMailer(cfg *config.Config, recorder email.AttemptRecorder, log *slog.Logger) (digest.Mailer, error) {
	if cfg.EmailProvider == "log" {
		return email.NewLogSender(cfg.EmailFrom, log), nil
	}

	provider, err := email.NewProvider(cfg.EmailProvider, cfg.EmailAPIURL)
	if err != nil {
		return nil, err
	}

	return email.NewSender(provider, email.Config{
		APIKey:     cfg.EmailAPIKey,
		From:       cfg.EmailFrom,
		MaxRetries: cfg.EmailMaxRetries,
		BaseDelay:  cfg.EmailRetryBaseDelay,
		Timeout:    cfg.EmailTimeout,
	}, recorder, log), nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer comps.db.Close()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            middleware.PerMinute(cfg.RateLimitDigest),
		Burst:           cfg.RateLimitBurst,
		CleanupInterval: middleware.DefaultRateLimiterConfig().CleanupInterval,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		DigestRunner: comps.service,
		CronSecret:   cfg.CronSecret,
		RateLimiter:  rateLimiter,
		Pinger:       comps.db,
		Gatherer:     comps.registry,
		Logger:       log,
	})

	// ダイジェスト送信は再試行を含めて長時間かかるため、WriteTimeoutは設定しない
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listenAndServe(server, log) })
	g.Go(func() error { return shutdownOnDone(ctx, server, log) })

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// cronスケジューラ、クリーンアップジョブ、監視用HTTPサーバーを並行実行し、
// いずれかが失敗するかシグナルを受信すると全体を停止する。
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer comps.db.Close()

	sched := scheduler.NewScheduler(
		comps.service,
		repository.NewPostgresRunLocker(comps.db),
		comps.collector,
		log,
		cfg.DigestTimezone,
		scheduler.Schedule{Frequency: model.FrequencyDaily, Spec: cfg.DigestDailyCron},
		scheduler.Schedule{Frequency: model.FrequencyWeekly, Spec: cfg.DigestWeeklyCron},
	)

	cleanupJob := cleanup.NewCleanupJob(comps.db, comps.collector, log)
	cleanupJob.RetentionDays = cfg.NotificationRetentionDays

	opsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           handler.NewOpsRouter(comps.db, comps.registry, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("worker starting",
		slog.String("daily_cron", cfg.DigestDailyCron),
		slog.String("weekly_cron", cfg.DigestWeeklyCron),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Start(ctx) })
	g.Go(func() error {
		cleanupJob.Start(ctx, cfg.CleanupInterval)
		return nil
	})
	g.Go(func() error { return listenAndServe(opsServer, log) })
	g.Go(func() error { return shutdownOnDone(ctx, opsServer, log) })

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("worker stopped gracefully")
	return nil
}

// digestSummary はdigestコマンドの出力。本文は含めない。
type digestSummary struct {
	Frequency model.Frequency `json:"frequency"`
	Commit    bool            `json:"commit"`
	Count     int             `json:"count"`
	Sent      int             `json:"sent"`
	Failed    int             `json:"failed"`
}

// runDigest はダイジェストを1回実行し、集計結果をJSONでoutへ書き出す。
// 実行ロックはworkerと共有する。
func runDigest(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer, freq model.Frequency, commit bool) error {
	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer comps.db.Close()

	sched := scheduler.NewScheduler(
		comps.service,
		repository.NewPostgresRunLocker(comps.db),
		comps.collector,
		log,
		cfg.DigestTimezone,
	)

	result, err := sched.RunOnce(ctx, freq, commit)
	if err != nil {
		if result != nil {
			// 送信済みの件数は失敗時も出力する
			_ = writeSummary(out, result)
		}
		return fmt.Errorf("digest run failed: %w", err)
	}

	return writeSummary(out, result)
}

func writeSummary(out io.Writer, result *model.RunResult) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(digestSummary{
		Frequency: result.Frequency,
		Commit:    result.Commit,
		Count:     result.Count,
		Sent:      result.Sent,
		Failed:    result.Failed,
	})
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

func listenAndServe(server *http.Server, log *slog.Logger) error {
	log.Info("HTTP server starting", slog.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen error: %w", err)
	}
	return nil
}

// shutdownOnDone はctxの終了を待ってサーバーを停止する。
func shutdownOnDone(ctx context.Context, server *http.Server, log *slog.Logger) error {
	<-ctx.Done()
	log.Info("shutting down HTTP server...", slog.String("addr", server.Addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
