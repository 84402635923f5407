package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

// Verification holds the tuning knobs of the story verification
// reconciler. Every value has a default so a bare environment still
// produces a working job. LaunchDate separates legacy posts (created
// before caption tagging existed) from tagged ones.
type Verification struct {
	LaunchDate      time.Time
	StoryTTL        time.Duration
	FallbackWindow  time.Duration
	BackoffSchedule []time.Duration
	RateLimitDelay  time.Duration
	MaxAttempts     int
	RunInterval     time.Duration
	FetchTimeout    time.Duration
	Concurrency     int
}

type Config struct {
	InstagramClientID     string
	InstagramClientSecret string
	GraphAPIBaseURL       string
	LateConfirmURL        string
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleRedirectURI     string
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	R2                    R2
	SecretKey             string
	CookieName            string
	OperatorEmails        []string
	Verification          Verification
}

func LoadConfig() *Config {
	return &Config{
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		GraphAPIBaseURL:       getEnv("GRAPH_API_BASE_URL", "https://graph.instagram.com/v21.0"),
		LateConfirmURL:        getEnv("LATE_CONFIRM_URL", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:     getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/login/callback"),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", ""),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		SecretKey:      getEnv("SECRET_KEY", ""),
		CookieName:     getEnv("COOKIE_NAME", "storysync_session"),
		OperatorEmails: getEnvList("OPERATOR_EMAILS"),
		Verification: Verification{
			LaunchDate:      getEnvTime("VERIFICATION_LAUNCH_DATE", time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)),
			StoryTTL:        getEnvDuration("STORY_TTL", 24*time.Hour),
			FallbackWindow:  getEnvDuration("VERIFICATION_FALLBACK_WINDOW", 5*time.Minute),
			BackoffSchedule: getEnvDurationList("VERIFICATION_BACKOFF_SCHEDULE", []time.Duration{5 * time.Minute, 10 * time.Minute, 15 * time.Minute}),
			RateLimitDelay:  getEnvDuration("VERIFICATION_RATE_LIMIT_DELAY", 30*time.Minute),
			MaxAttempts:     getEnvInt("VERIFICATION_MAX_ATTEMPTS", 3),
			RunInterval:     getEnvDuration("VERIFICATION_RUN_INTERVAL", 5*time.Minute),
			FetchTimeout:    getEnvDuration("VERIFICATION_FETCH_TIMEOUT", 15*time.Second),
			Concurrency:     getEnvInt("VERIFICATION_CONCURRENCY", 5),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvTime(key string, defaultValue time.Time) time.Time {
	if value := os.Getenv(key); value != "" {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getEnvDurationList(key string, defaultValue []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []time.Duration
	for _, part := range strings.Split(value, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, d)
	}
	return out
}
