package config

import (
	"os"
	"strconv"

	"github.com/opendatahq/issues-backend/internal/roles"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT (issued by the host application)
	JWTSecret string

	// Moderation
	MaxStrikes int

	// Review gate: flip datasets private while they have open issues.
	ReviewSystem bool

	// Notifications
	EmailNotifications bool
	NotifyOwner        bool
	NotifyAdmin        bool
	MinRoleRequired    roles.Role

	// Minimum org capacity required to file an issue. Empty means any
	// authenticated user.
	CreateMinRole roles.Role

	// SMTP
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Spam classifier (akismet-compatible comment-check endpoint)
	SpamAPIKey string
	SpamAPIURL string
	SiteURL    string

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "issues_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		MaxStrikes: parseInt(getEnv("MAX_STRIKES", "2"), 2),

		ReviewSystem: parseBool(getEnv("REVIEW_SYSTEM", "false")),

		EmailNotifications: parseBool(getEnv("EMAIL_NOTIFICATIONS", "false")),
		NotifyOwner:        parseBool(getEnv("NOTIFY_OWNER", "false")),
		NotifyAdmin:        parseBool(getEnv("NOTIFY_ADMIN", "false")),
		MinRoleRequired:    roles.Normalize(getEnv("MIN_ROLE_REQUIRED", "admin")),
		CreateMinRole:      roles.Role(getEnv("CREATE_MIN_ROLE", "")),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", ""),

		SpamAPIKey: getEnv("SPAM_API_KEY", ""),
		SpamAPIURL: getEnv("SPAM_API_URL", "https://rest.akismet.com/1.1/comment-check"),
		SiteURL:    getEnv("SITE_URL", "http://localhost:8080"),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// SpamCheckEnabled reports whether the async spam classifier should run.
func (c *Config) SpamCheckEnabled() bool {
	return c.SpamAPIKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
