// Package app はコマンドラインからの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/taskman/internal/allowlist"
	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/config"
	"github.com/hitoshi/taskman/internal/database"
	"github.com/hitoshi/taskman/internal/handler"
	"github.com/hitoshi/taskman/internal/logger"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
	"github.com/hitoshi/taskman/internal/task"
	"github.com/hitoshi/taskman/internal/worker/cleanup"
)

const (
	shutdownTimeout = 30 * time.Second
	startupTimeout  = 10 * time.Second
)

// Init はserveコマンドの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, "info")

	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// initDatabaseOnly は管理コマンド用にDB接続設定だけを読み込む。
func initDatabaseOnly(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w, "info")

	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンドを省略した場合はserveとして起動する。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	conns, err := database.OpenConnections(cfg.DatabaseURL, cfg.AdminDatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conns.Close()

	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	err = conns.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. セッション方式の選択
	verifier, closeStore, err := newSessionVerifier(ctx, cfg, conns)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. IdP
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HTTPClient:   security.NewOutboundClient(cfg.OAuthHTTPTimeout),
	})
	for _, endpoint := range oauthProvider.Endpoints() {
		if err := security.ValidateEndpoint(endpoint); err != nil {
			return fmt.Errorf("invalid oauth endpoint %s: %w", endpoint, err)
		}
	}

	// 4. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービス
	authService := auth.NewService(
		oauthProvider,
		repository.NewPostgresUserRepo(conns.App),
		repository.NewPostgresIdentityRepo(conns.App),
	)
	// 許可リストはRLSをバイパスする特権接続でのみ参照する
	checker := allowlist.NewChecker(repository.NewPostgresAllowListRepo(conns.Admin))
	taskService := task.NewService(repository.NewPostgresTaskRepo(conns.App), collector)

	// 6. ルーター
	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitGeneral > 0 {
		rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral))
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL: cfg.BaseURL,
			Cookie:  cookieOptions(cfg),
		},
		Verifier: verifier,
		Access:   checker,

		TaskService:   taskService,
		HealthChecker: conns,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("session_transport", cfg.SessionTransport),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newSessionVerifier は設定に応じたSessionVerifierを生成する。
// 返り値のcloseはセッションストアの接続を閉じる。
func newSessionVerifier(ctx context.Context, cfg *config.Config, conns *database.Connections) (auth.SessionVerifier, func(), error) {
	noop := func() {}

	if cfg.SessionTransport == config.SessionTransportBearer {
		return auth.NewBearerTokenVerifier(auth.BearerSessionConfig{
			Secret:           []byte(cfg.SessionSecret),
			TTL:              cfg.SessionTTL(),
			RefreshThreshold: cfg.SessionRefreshThreshold,
			BaseURL:          cfg.BaseURL,
		}), noop, nil
	}

	var sessions repository.SessionRepository
	closeStore := noop

	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		sessions = repository.NewRedisSessionRepo(client, cfg.RedisKeyPrefix)
		closeStore = func() {
			if err := client.Close(); err != nil {
				slog.Warn("failed to close redis client", slog.String("error", err.Error()))
			}
		}
		slog.Info("session store: redis")
	default:
		sessions = repository.NewPostgresSessionRepo(conns.App)
		slog.Info("session store: postgres")
	}

	return auth.NewCookieSessionVerifier(sessions, auth.CookieSessionConfig{
		Cookie:           cookieOptions(cfg),
		MaxAge:           cfg.SessionTTL(),
		RefreshThreshold: cfg.SessionRefreshThreshold,
		BaseURL:          cfg.BaseURL,
	}), closeStore, nil
}

// newRedisClient はREDIS_URLからクライアントを生成し、疎通を確認する。
func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func cookieOptions(cfg *config.Config) auth.CookieOptions {
	return auth.CookieOptions{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}
}

// runMigrate はデータベースマイグレーションを実行する。
// RLSポリシーとロールを作成するため特権接続で実行する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.AdminDatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.AdminDatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runCleanup は期限切れセッションを1回だけ削除する。cronからの実行を想定する。
func runCleanup(ctx context.Context, cfg *config.Config, graceHours int) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(db, slog.Default())
	job.GraceHours = graceHours
	return job.Run(ctx)
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

// healthcheckPort はSERVER_PORTを返す。フル初期化を行わないため環境変数を直接読む。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
