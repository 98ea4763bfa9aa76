package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/later/internal/metrics"
	"github.com/hitoshi/later/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	ItemService ItemServiceInterface
	UserService UserServiceInterface
	NoteService NoteServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → SecurityHeaders → (Owner → RateLimit)
//
// /health、/metrics、/users は所有者ヘッダーなしで呼び出せる。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	itemHandler := NewItemHandler(deps.ItemService)
	userHandler := NewUserHandler(deps.UserService)
	noteHandler := NewNoteHandler(deps.NoteService)

	// --- 所有者不要のルート ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/users", func(r chi.Router) {
		r.Post("/", userHandler.Create)
		r.Get("/", userHandler.List)
	})

	// --- 所有者が必要なルート ---
	// ミドルウェアスタック: Owner → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOwnerMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/items", func(r chi.Router) {
			// POST /items - URL解決を伴うため登録専用レート制限を追加
			r.With(deps.RateLimiter.ItemAddMiddleware()).Post("/", itemHandler.AddItem)
			r.Get("/", itemHandler.ListItems)
			r.Patch("/", itemHandler.EditItem)
			r.Get("/by-tags", itemHandler.ItemsByTags)
			r.Delete("/{id}", itemHandler.DeleteItem)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Post("/", noteHandler.AddNote)
			r.Get("/", noteHandler.ListNotes)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
