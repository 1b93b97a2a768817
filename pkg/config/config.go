package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	DatabaseURL      string
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Microsoft Graph (app-only credentials for shared mailboxes)
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string

	// Operational shared inboxes and internal escalation inboxes
	SharedInboxes           []string
	EscalationInboxStaffing string
	EscalationInboxServices string
	EscalationInboxBilling  string

	// Initial sync only: bound the first backfill to this many days.
	// Zero means unbounded.
	IngestLookbackDays int

	OpenAIAPIKey      string
	OpenAIModelInline string
	OpenAIModelDraft  string

	// Worker poll intervals
	IngestInterval   time.Duration
	ExtractInterval  time.Duration
	ClassifyInterval time.Duration
	DraftInterval    time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:  getDuration("JWT_ACCESS_EXPIRY", 12*time.Hour),
		JWTRefreshExpiry: getDuration("JWT_REFRESH_EXPIRY", 30*24*time.Hour),

		GraphTenantID:     getEnv("GRAPH_TENANT_ID", ""),
		GraphClientID:     getEnv("GRAPH_CLIENT_ID", ""),
		GraphClientSecret: getEnv("GRAPH_CLIENT_SECRET", ""),

		SharedInboxes:           splitEmails(os.Getenv("GRAPH_SHARED_INBOXES")),
		EscalationInboxStaffing: getEnv("GRAPH_ESCALATION_STAFFING", "staffing@therapydepotonline.com"),
		EscalationInboxServices: getEnv("GRAPH_ESCALATION_SERVICES", "services@therapydepotonline.com"),
		EscalationInboxBilling:  getEnv("GRAPH_ESCALATION_BILLING", "billing@therapydepotonline.com"),

		IngestLookbackDays: getInt("GRAPH_INGEST_LOOKBACK_DAYS", 0),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModelInline: getEnv("OPENAI_MODEL_INLINE", "gpt-5.2"),
		OpenAIModelDraft:  getEnv("OPENAI_MODEL_DRAFT", "gpt-5.2"),

		IngestInterval:   getDuration("INGEST_INTERVAL", 30*time.Second),
		ExtractInterval:  getDuration("EXTRACT_INTERVAL", 2*time.Second),
		ClassifyInterval: getDuration("CLASSIFY_INTERVAL", 10*time.Second),
		DraftInterval:    getDuration("DRAFT_INTERVAL", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitEmails(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
