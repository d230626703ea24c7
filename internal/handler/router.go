package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tally/internal/auth"
	"github.com/hitoshi/tally/internal/metrics"
	"github.com/hitoshi/tally/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     auth.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Collector         metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// ヘルスチェック用のDB接続
	DB *sql.DB

	// ドメインサービス
	DisbursementService DisbursementServiceInterface
	SettlementService   SettlementServiceInterface
	UserService         UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → Auth → RateLimit(General)
//
// /health と /metrics は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.CORSAllowedOrigin != "" {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	}
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))

	disbHandler := NewDisbursementHandler(deps.DisbursementService)
	settleHandler := NewSettlementHandler(deps.SettlementService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		if deps.Collector != nil {
			r.Use(middleware.NewMetricsMiddleware(deps.Collector))
		}
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 立替管理
		r.Route("/api/disbursements", func(r chi.Router) {
			r.Post("/", disbHandler.CreateDisbursement)
			r.Get("/", disbHandler.ListDisbursements)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", disbHandler.GetDisbursement)
				r.Delete("/", disbHandler.DeleteDisbursement)
			})
		})

		// 精算管理
		r.Route("/api/settlements", func(r chi.Router) {
			// POST /api/settlements - 精算作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.SettlementMiddleware()).Post("/", settleHandler.CreateSettlement)
			r.Get("/", settleHandler.ListSettlements)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", settleHandler.GetSettlement)
				r.Delete("/", settleHandler.DeleteSettlement)
			})
		})

		// ユーザー情報
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
		})
	})

	return r
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
// GET /health
// DBに到達できない場合は503を返す。
func NewHealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(healthResponse{Status: "unavailable"})
				return
			}
		}

		json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
	}
}
