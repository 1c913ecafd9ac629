package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/config"
	"github.com/stemsi/examhall-backend/internal/handler"
	"github.com/stemsi/examhall-backend/internal/middleware"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/monitoring"
	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/tracing"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Category *handler.CategoryHandler
	Exam     *handler.ExamHandler
	Session  *handler.SessionHandler
	Ad       *handler.AdHandler
	Media    *handler.MediaHandler
	Checkout *handler.CheckoutHandler
	Monitor  *handler.MonitorHandler
	WS       *handler.WSHandler
	Health   *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by the router, such as rate limiter cleanup.
func SetupRouter(
	ctx context.Context,
	auth middleware.TokenValidator,
	handlers *Handlers,
	metrics *monitoring.Metrics,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the access log and every envelope carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware())
	router.Use(middleware.Brotli())

	// Serve uploaded media files statically with aggressive caching (1 year).
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", metrics.Handler())

	requireAuth := middleware.RequireAuth(auth)
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleTeacher)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)
	authAPI := router.Group("/api/auth")
	authAPI.Use(authLimiter.Middleware())
	{
		authAPI.POST("/register", handlers.Auth.Register)
		authAPI.POST("/login", handlers.Auth.Login)
		authAPI.GET("/me", requireAuth, handlers.Auth.Me)
	}

	api := router.Group("/api")

	// ─── 2. Exam sessions (JWT) ────────────────────────────────────────
	sessions := api.Group("/sessions")
	sessions.Use(requireAuth)
	{
		sessions.POST("/start", handlers.Session.StartSession)
		sessions.POST("", handlers.Session.Checkpoint)
		sessions.GET("", handlers.Session.FetchSession)
		sessions.POST("/submit", handlers.Session.Submit)
	}
	api.GET("/submissions", requireAuth, handlers.Session.ListSubmissions)

	// ─── 3. WebSocket (token via header or ?token=) ────────────────────
	ws := router.Group("/ws")
	ws.Use(requireAuth)
	{
		ws.GET("/sessions/:exam_id", handlers.WS.SessionStream)
	}

	// ─── 4. Users (admin) ──────────────────────────────────────────────
	users := api.Group("/users")
	users.Use(requireAuth, adminOnly)
	{
		users.GET("", handlers.User.ListUsers)
		users.PATCH("/promote/:id", handlers.User.Promote)
		users.PATCH("/update/:id", handlers.User.UpdatePlan)
	}

	// ─── 5. Categories ─────────────────────────────────────────────────
	api.GET("/categories", handlers.Category.ListCategories)
	api.GET("/categories/:title", handlers.Category.ListCategoryExams)
	api.POST("/category/add", requireAuth, staff, handlers.Category.CreateCategory)
	api.PUT("/categories/update/:id", requireAuth, adminOnly, handlers.Category.UpdateCategory)
	api.DELETE("/categories/delete/:id", requireAuth, adminOnly, handlers.Category.DeleteCategory)

	// ─── 6. Exams ──────────────────────────────────────────────────────
	exams := api.Group("/exams")
	{
		exams.GET("", handlers.Exam.ListExams)
		exams.GET("/exam/:slug", requireAuth, handlers.Exam.GetExam)
		exams.POST("/create-exam", requireAuth, staff, handlers.Exam.CreateExam)
		exams.PUT("/exam/edit/:id", requireAuth, staff, handlers.Exam.UpdateExam)
		exams.DELETE("/delete/:id", requireAuth, adminOnly, handlers.Exam.DeleteExam)
		exams.POST("/:id/refresh-cache", requireAuth, staff, handlers.Exam.RefreshCache)
		exams.GET("/:id/submissions/export", requireAuth, staff, handlers.Exam.ExportResults)
		exams.GET("/:id/monitor", requireAuth, staff, handlers.Monitor.MonitorExamSSE)
		exams.GET("/:id/monitor/snapshot", requireAuth, staff, handlers.Monitor.Snapshot)
	}

	// ─── 7. Ads ────────────────────────────────────────────────────────
	ads := api.Group("/ads")
	{
		ads.GET("", handlers.Ad.ListAds)
		ads.GET("/ad/:slug", handlers.Ad.GetAd)
		ads.GET("/related/:category", handlers.Ad.ListRelated)
		ads.GET("/user/:username", handlers.Ad.ListByUser)
		ads.POST("", requireAuth, handlers.Ad.CreateAd)
		ads.PATCH("/:id/sold", requireAuth, handlers.Ad.ToggleSold)
		ads.DELETE("/:id", requireAuth, handlers.Ad.DeleteAd)
	}

	// ─── 8. Media & payments ───────────────────────────────────────────
	api.POST("/media/upload", requireAuth, staff, handlers.Media.UploadMedia)
	api.POST("/create-checkout-session", requireAuth, handlers.Checkout.CreateSession)

	return router
}
