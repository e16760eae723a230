// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/contact-desk/internal/auth"
	"github.com/yourusername/contact-desk/internal/config"
	"github.com/yourusername/contact-desk/internal/ratelimit"
	"github.com/yourusername/contact-desk/internal/submission"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// 受付内容の保存先を開く
	store, err := submission.NewStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open submission store: %v", err)
	}
	defer store.Close()

	router, err := newRouter(cfg, store)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newRouter はミドルウェアとルーティングを配線したルーターを作成します。
func newRouter(cfg *config.Config, store *submission.Store) (*gin.Engine, error) {
	// デフォルトミドルウェア: Logger, Recovery
	router := gin.Default()

	// セッションはサーバー側（プロセス内メモリ）に保持し、
	// クッキーには署名付きのセッションIDのみを載せる
	sessionStore := memstore.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, sessionStore))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	router.Use(cors.New(corsConfig))

	// レート制限: 全体に緩い上限、submit/loginにはさらに厳しい上限
	counter, err := newCounter(cfg)
	if err != nil {
		return nil, err
	}
	window := time.Duration(cfg.RateLimitWindowMin) * time.Minute
	globalLimiter := ratelimit.New(counter, cfg.GlobalRateLimit, window, "global")
	strictLimiter := ratelimit.New(counter, cfg.StrictRateLimit, window, "strict")
	router.Use(globalLimiter.Middleware())

	// ルーティングの設定
	setupRoutes(router, cfg, store, strictLimiter)

	return router, nil
}

// newCounter は設定に応じたレート制限カウンターを作成します。
func newCounter(cfg *config.Config) (ratelimit.Counter, error) {
	if cfg.RateLimitBackend != "redis" {
		return ratelimit.NewMemoryCounter(), nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return ratelimit.NewRedisCounter(redis.NewClient(opt)), nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "contact-desk-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, store *submission.Store, strict *ratelimit.Limiter) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	authManager := auth.NewManager(cfg)

	api := router.Group("/api")
	{
		api.POST("/submit", strict.Middleware(), submission.SubmitHandler(store))

		admin := api.Group("/admin")
		{
			// ログイン試行もsubmitと同じ厳しい上限を適用する
			admin.POST("/login", strict.Middleware(), authManager.Login)
			admin.GET("/check-auth", authManager.CheckAuth)
			admin.POST("/logout", authManager.Logout)
			admin.GET("/submissions",
				authManager.RequireLogin(),
				submission.ListHandler(store),
			)
		}
	}
}
