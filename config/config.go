package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	RedisAddr     string
	RedisPassword string

	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	StorageBucket      string

	RabbitMQURL   string
	OrderExchange string
	NotifyQueue   string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	ShopEmail    string

	SMSURL      string
	SMSUsername string
	SMSAPIKey   string

	AdminEmail        string
	AdminPasswordHash string
	JWTSecret         string
	OIDCIssuer        string
	OIDCClientID      string

	CORSOrigins []string
	Location    *time.Location

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads a .env file when one is present, then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnv("PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnvFromFile("DB_PASSWORD_FILE", "DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "epicerie"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvFromFile("REDIS_PASSWORD_FILE", "REDIS_PASSWORD", ""),

		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnvFromFile("SUPABASE_SERVICE_ROLE_KEY_FILE", "SUPABASE_SERVICE_ROLE_KEY", ""),
		StorageBucket:      getEnv("STORAGE_BUCKET", "product-images"),

		RabbitMQURL:   getEnv("RABBITMQ_URL", ""),
		OrderExchange: getEnv("ORDER_EXCHANGE", "orders_exchange"),
		NotifyQueue:   getEnv("NOTIFY_QUEUE", "order_notifications"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnvFromFile("SMTP_PASSWORD_FILE", "SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "commandes@epicerie-du-quartier.fr"),
		ShopEmail:    getEnv("SHOP_EMAIL", ""),

		SMSURL:      getEnv("SMS_API_URL", ""),
		SMSUsername: getEnv("SMS_USERNAME", "sandbox"),
		SMSAPIKey:   getEnvFromFile("SMS_API_KEY_FILE", "SMS_API_KEY", ""),

		AdminEmail:        getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPasswordHash: getEnvFromFile("ADMIN_PASSWORD_HASH_FILE", "ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""),
		OIDCIssuer:        getEnv("OIDC_ISSUER", ""),
		OIDCClientID:      getEnv("OIDC_CLIENT_ID", ""),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	loc, err := time.LoadLocation(getEnv("SHOP_TIMEZONE", "Europe/Paris"))
	if err != nil {
		loc = time.UTC
	}
	cfg.Location = loc

	return cfg
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
