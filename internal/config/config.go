// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り、空ならリクエスト元をそのまま許可）

	// ストア設定
	StoreRedisURL string // アカウント・物件ドキュメントを保存する Redis の接続URL
	QueueRedisURL string // Asynq用Redis接続URL（空なら確認メールジョブを無効化）

	// セッショントークン設定
	JWTSecret     string        // トークン署名用の秘密鍵
	JWTExpiration time.Duration // トークンの有効期間
	CookieMaxAge  time.Duration // セッションクッキーの MaxAge
	CookieSecure  bool          // クッキーに Secure 属性を付けるか

	// 任意機能
	TokenRevocation bool   // ログアウト時にトークンを拒否リストへ登録するか
	CSRFProtection  bool   // 物件更新系APIで CSRF トークンを要求するか
	SessionSecret   string // CSRF 用セッションクッキーの署名鍵

	// メールアドレス確認
	VerificationBaseURL string        // 確認リンクのベースURL
	VerificationTTL     time.Duration // 確認チケットの有効期間

	// ログ設定
	LogLevel string // debug, info, warn, error
}

// Load は環境変数から設定を読み込みます。
// .env / .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	ttl, err := getEnvAsDuration("JWT_EXPIRATION", time.Hour)
	if err != nil {
		return nil, err
	}
	// クッキーの寿命は明示しない限りトークンと揃える
	cookieMaxAge, err := getEnvAsDuration("COOKIE_MAX_AGE", ttl)
	if err != nil {
		return nil, err
	}
	verificationTTL, err := getEnvAsDuration("VERIFICATION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Port:    getEnv("PORT", "3000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),

		StoreRedisURL: getEnv("STORE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		QueueRedisURL: getEnv("QUEUE_REDIS_URL", ""),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiration: ttl,
		CookieMaxAge:  cookieMaxAge,
		CookieSecure:  getEnvAsBool("COOKIE_SECURE", true),

		TokenRevocation: getEnvAsBool("TOKEN_REVOCATION", false),
		CSRFProtection:  getEnvAsBool("CSRF_PROTECTION", false),
		SessionSecret:   getEnv("SESSION_SECRET", ""),

		VerificationBaseURL: getEnv("VERIFICATION_BASE_URL", "http://localhost:3000/api/v1/auth/verify"),
		VerificationTTL:     verificationTTL,

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	// 先に読み込んだ値が優先されるため .env.local を先に読む
	_ = godotenv.Load(".env.local")
	if err := godotenv.Load(".env"); err == nil {
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

	_ = godotenv.Load(filepath.Join(parent, ".env"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWTExpiration <= 0 {
		return fmt.Errorf("JWT_EXPIRATION must be positive")
	}
	if c.CookieMaxAge <= 0 {
		return fmt.Errorf("COOKIE_MAX_AGE must be positive")
	}
	if c.CookieMaxAge > c.JWTExpiration {
		return fmt.Errorf("COOKIE_MAX_AGE (%s) must not exceed JWT_EXPIRATION (%s)", c.CookieMaxAge, c.JWTExpiration)
	}
	if c.CSRFProtection && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required when CSRF_PROTECTION is enabled")
	}
	if c.StoreRedisURL == "" {
		return fmt.Errorf("STORE_REDIS_URL is required")
	}
	if c.GinMode == "release" && !c.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be enabled in release mode")
	}

	return nil
}

// AllowedOrigins は CORS 許可オリジンの一覧を返します。空の場合は nil を返します。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します。
// "1h" のような Go の表記、"7d" のような日数、単位なしの整数（秒）を受け付けます。
// 解釈できない値はエラーになります。
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := parseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, valueStr)
	}
	return value, nil
}

func parseDuration(value string) (time.Duration, error) {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("negative duration")
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count")
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(value)
}
