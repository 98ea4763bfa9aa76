package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/later/internal/config"
	"github.com/hitoshi/later/internal/database"
	"github.com/hitoshi/later/internal/handler"
	"github.com/hitoshi/later/internal/item"
	"github.com/hitoshi/later/internal/logger"
	"github.com/hitoshi/later/internal/metrics"
	"github.com/hitoshi/later/internal/middleware"
	"github.com/hitoshi/later/internal/note"
	"github.com/hitoshi/later/internal/repository"
	"github.com/hitoshi/later/internal/resolver"
	"github.com/hitoshi/later/internal/security"
	"github.com/hitoshi/later/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}

func runServeCommand(w io.Writer) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(CommandServe)),
		slog.String("port", cfg.ServerPort),
	)
	return runServe(cfg)
}

func runMigrateCommand(w io.Writer, down int) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application", slog.String("command", string(CommandMigrate)))
	return runMigrate(cfg, down)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, 10*time.Second); err != nil {
		return err
	}

	slog.Info("database connection established")

	// 2. 依存関係のワイヤリング
	router, cleanup := buildHandler(cfg, db, prometheus.NewRegistry())
	defer cleanup()

	// 3. HTTPサーバーの起動
	// POST /items はURL解決を待つため、書き込みタイムアウトは解決タイムアウトより長くする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ResolverTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildHandler はリポジトリ・リゾルバ・サービスを組み立ててルーターを返す。
// 戻り値の関数はバックグラウンド処理を停止する。
func buildHandler(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (http.Handler, func()) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)
	noteRepo := repository.NewPostgresNoteRepo(db)

	// 2. メトリクス
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. リゾルバの初期化
	var guard security.URLGuard = security.NewSSRFGuard()
	if cfg.ResolverAllowPrivate {
		slog.Warn("SSRF guard disabled: private and loopback addresses are resolvable")
		guard = security.NewPermissiveGuard()
	}
	res := resolver.New(resolverConfig(cfg), guard, collector)

	// 4. ドメインサービスの初期化
	itemService := item.NewService(userRepo, itemRepo, res, collector, item.ListConfig{
		DefaultLimit: cfg.DefaultListLimit,
		MaxLimit:     cfg.MaxListLimit,
	})
	userService := user.NewService(userRepo)
	noteService := note.NewService(itemRepo, noteRepo, security.NewTextSanitizer())

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitItemAdd),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HealthChecker:     db,
		Gatherer:          reg,
		ItemService:       itemService,
		UserService:       userService,
		NoteService:       noteService,
	})

	return router, rateLimiter.Stop
}

// resolverConfig は設定値からリゾルバの設定を組み立てる。未設定の項目はデフォルト値を使う。
func resolverConfig(cfg *config.Config) resolver.Config {
	rc := resolver.DefaultConfig()
	if cfg.ResolverTimeout > 0 {
		rc.Timeout = cfg.ResolverTimeout
	}
	if cfg.ResolverMaxRedirects > 0 {
		rc.MaxRedirects = cfg.ResolverMaxRedirects
	}
	if cfg.ResolverMaxBodySize > 0 {
		rc.MaxBodySize = cfg.ResolverMaxBodySize
	}
	if cfg.ResolverUserAgent != "" {
		rc.UserAgent = cfg.ResolverUserAgent
	}
	return rc
}

// runMigrate はデータベースマイグレーションを実行する。
// downが0の場合はすべての未適用マイグレーションを適用し、
// 正の場合はその件数だけ巻き戻す。
func runMigrate(cfg *config.Config, down int) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("down", down),
	)

	if down > 0 {
		if err := database.RollbackMigrations(cfg.DatabaseURL, down); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back successfully")
		return nil
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
