package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/volman/internal/middleware"
	"github.com/hitoshi/volman/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カタログ参照
	ProjectRepo repository.ProjectRepository

	// カートと確定
	CartService     CartServiceInterface
	CheckoutService CheckoutServiceInterface

	// 登録台帳
	RegistrationRepo repository.RegistrationRepository

	// 管理
	AdminUsernames  []string
	CatalogImporter CatalogImporterInterface

	// 曜日判定用タイムゾーン
	Zone *time.Location
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Session → RateLimit(General)
//
// 認証ルート（/auth/*）とヘルスチェックはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	projectHandler := NewProjectHandler(deps.ProjectRepo, deps.Zone)
	cartHandler := NewCartHandler(deps.CartService)
	checkoutHandler := NewCheckoutHandler(deps.CheckoutService)
	registrationHandler := NewRegistrationHandler(deps.RegistrationRepo)
	adminHandler := NewAdminHandler(deps.ProjectRepo, deps.CatalogImporter, deps.AdminUsernames, deps.Zone)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// カタログ参照
		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.ListProjects)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.GetProject)
				r.Get("/availability", projectHandler.GetAvailability)
			})
		})

		// カート操作
		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.ListCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", cartHandler.AddCartItem)
				r.Delete("/", cartHandler.RemoveCartItem)
			})
		})

		// カート確定（確定専用レート制限を追加）
		r.With(deps.RateLimiter.ConfirmMiddleware()).Post("/api/checkout", checkoutHandler.Confirm)

		// 登録台帳
		r.Route("/api/registrations", func(r chi.Router) {
			r.Get("/", registrationHandler.ListRegistrations)
			r.Get("/export", registrationHandler.ExportRegistrations)
		})

		// パスワード変更
		r.Post("/api/password", authHandler.ChangePassword)

		// 管理
		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/projects", adminHandler.ListAllProjects)
			r.Put("/projects/{id}/active", adminHandler.SetProjectActive)
			r.Post("/catalog/import", adminHandler.ImportCatalog)
		})
	})

	return r
}
