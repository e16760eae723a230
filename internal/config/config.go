// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// 管理者認証設定
	AdminUsername     string // 管理者ログイン用ユーザー名
	AdminPasswordHash string // bcryptでハッシュ化された管理者パスワード
	SessionSecret     string // セッションクッキー署名用の秘密鍵

	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ストレージ設定
	DatabasePath string // SQLiteデータベースファイルのパス

	// レート制限設定
	RateLimitBackend   string // カウンターの保存先 (memory, redis)
	RedisURL           string // redisバックエンド使用時の接続URL
	GlobalRateLimit    int    // 全リクエスト共通の上限（ウィンドウあたり）
	StrictRateLimit    int    // submit/login専用の上限（ウィンドウあたり）
	RateLimitWindowMin int    // ウィンドウ幅（分）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		// 管理者認証設定
		AdminUsername:     getEnv("ADMIN_USERNAME", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		SessionSecret:     getEnv("SESSION_SECRET", ""),

		// サーバー設定
		Port:    getEnv("PORT", "3000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// ストレージ設定
		DatabasePath: getEnv("DATABASE_PATH", filepath.Join("data", "submissions.db")),

		// レート制限設定
		RateLimitBackend:   getEnv("RATE_LIMIT_BACKEND", "memory"),
		RedisURL:           getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		GlobalRateLimit:    getEnvAsInt("GLOBAL_RATE_LIMIT", 100),
		StrictRateLimit:    getEnvAsInt("STRICT_RATE_LIMIT", 10),
		RateLimitWindowMin: getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 15),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	// ローカル開発では認証設定は任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.AdminUsername == "" {
			return fmt.Errorf("ADMIN_USERNAME is required in release mode")
		}
		if c.AdminPasswordHash == "" {
			return fmt.Errorf("ADMIN_PASSWORD_HASH is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
	}

	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimitBackend)
	}
	if c.RateLimitBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND=redis")
	}

	if c.GlobalRateLimit <= 0 || c.StrictRateLimit <= 0 || c.RateLimitWindowMin <= 0 {
		return fmt.Errorf("rate limit settings must be positive integers")
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
