package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config covers both binaries: the chat client (cmd/jurislink) and the
// dev-local session service (cmd/sessiond). Values resolve in order:
// defaults, then the optional TOML file, then environment variables.
type Config struct {
	// Reasoning service
	ReasoningBaseURL    string `toml:"reasoning_base_url"`
	ReasoningTimeoutSec int    `toml:"reasoning_timeout_sec"`

	// Session sync
	SessionAPIBaseURL  string  `toml:"session_api_base_url"`
	OutboxDepth        int     `toml:"outbox_depth"`
	OutboxWritesPerSec float64 `toml:"outbox_writes_per_sec"`

	// Local state
	CachePath    string `toml:"cache_path"`
	ArtifactsDir string `toml:"artifacts_dir"`

	// Identity (demo mode when AuthToken is empty)
	UserID    string `toml:"user_id"`
	AuthToken string `toml:"auth_token"`

	// sessiond
	ListenAddr    string `toml:"listen_addr"`
	JWTSecret     string `toml:"jwt_secret"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

func defaults() Config {
	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".jurislink")
	return Config{
		ReasoningBaseURL:    "https://jurislink-api.azurewebsites.net/api",
		ReasoningTimeoutSec: 120,

		SessionAPIBaseURL:  "https://jurislink-api.azurewebsites.net/api",
		OutboxDepth:        64,
		OutboxWritesPerSec: 5,

		CachePath:    filepath.Join(stateDir, "sessions.db"),
		ArtifactsDir: filepath.Join(stateDir, "artifacts"),

		UserID: "guest-user",

		ListenAddr: ":8080",
		JWTSecret:  "dev-secret-change-me",
		RedisAddr:  "127.0.0.1:6379",
	}
}

// Load resolves the configuration. The TOML file path comes from
// JURISLINK_CONFIG, falling back to ~/.jurislink/config.toml; a missing
// file is not an error.
func Load() Config {
	cfg := defaults()

	path := os.Getenv("JURISLINK_CONFIG")
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".jurislink", "config.toml")
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			// Best-effort: a malformed file falls through to defaults+env.
			_, _ = toml.DecodeFile(path, &cfg)
		}
	}

	overrideStr(&cfg.ReasoningBaseURL, "JURISLINK_API_URL")
	overrideInt(&cfg.ReasoningTimeoutSec, "JURISLINK_API_TIMEOUT_SEC")
	overrideStr(&cfg.SessionAPIBaseURL, "JURISLINK_SESSIONS_URL")
	overrideInt(&cfg.OutboxDepth, "JURISLINK_OUTBOX_DEPTH")
	overrideStr(&cfg.CachePath, "JURISLINK_CACHE_PATH")
	overrideStr(&cfg.ArtifactsDir, "JURISLINK_ARTIFACTS_DIR")
	overrideStr(&cfg.UserID, "JURISLINK_USER_ID")
	overrideStr(&cfg.AuthToken, "JURISLINK_AUTH_TOKEN")

	overrideStr(&cfg.ListenAddr, "SESSIOND_ADDR")
	overrideStr(&cfg.JWTSecret, "JWT_SECRET")
	overrideStr(&cfg.RedisAddr, "REDIS_ADDR")
	overrideStr(&cfg.RedisPassword, "REDIS_PASSWORD")
	overrideInt(&cfg.RedisDB, "REDIS_DB")

	return cfg
}

func overrideStr(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
