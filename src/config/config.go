package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/reunite-app/reunite/src/data"
	"gorm.io/gorm"
)

type Config struct {
	Port      string
	MySQLDSN  string
	RedisURL  string
	JWTSecret string

	// AI scorer
	AIProvider string
	AIModel    string
	GeminiKey  string
	OpenAIKey  string
	AITimeout  time.Duration

	// Evidence store: "local" or "remote"
	EvidenceBackend    string
	EvidenceDir        string
	EvidenceBaseURL    string
	EvidenceStoreURL   string
	EvidenceStoreToken string

	SubmitCooldown time.Duration
}

// Load assembles runtime configuration: values from the settings table win,
// env vars are the fallback, then hard defaults.
func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	return Config{
		Port:      setting("port", "PORT", "8090"),
		MySQLDSN:  getenv("MYSQL_DSN", "reunite:reunite@tcp(127.0.0.1:3306)/reunite?parseTime=true"),
		RedisURL:  getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret: setting("jwt_secret", "JWT_SECRET", ""),

		AIProvider: setting("ai_provider", "AI_PROVIDER", "gemini"),
		AIModel:    setting("ai_model", "AI_MODEL", ""),
		GeminiKey:  setting("gemini_api_key", "GOOGLE_API_KEY", ""),
		OpenAIKey:  setting("openai_api_key", "OPENAI_API_KEY", ""),
		AITimeout:  durationSetting("ai_timeout_ms", "AI_TIMEOUT_MS", 6500),

		EvidenceBackend:    setting("evidence_backend", "EVIDENCE_BACKEND", "local"),
		EvidenceDir:        setting("evidence_dir", "EVIDENCE_DIR", "./uploads"),
		EvidenceBaseURL:    setting("evidence_base_url", "EVIDENCE_BASE_URL", "http://localhost:8090"),
		EvidenceStoreURL:   setting("evidence_store_url", "EVIDENCE_STORE_URL", ""),
		EvidenceStoreToken: setting("evidence_store_token", "EVIDENCE_STORE_TOKEN", ""),

		SubmitCooldown: durationSetting("submit_cooldown_ms", "SUBMIT_COOLDOWN_MS", 0),
	}
}

// setting reads from the settings table first, then the environment.
func setting(name, envKey, def string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = def
	}
	return val
}

func durationSetting(name, envKey string, defMillis int) time.Duration {
	raw := setting(name, envKey, "")
	if raw == "" {
		return time.Duration(defMillis) * time.Millisecond
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		log.Printf("bad %s value %q, using default %dms", name, raw, defMillis)
		return time.Duration(defMillis) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
