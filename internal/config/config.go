package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Merchant credentials
	Appid         string
	SecretKey     string
	MerchantID    string
	EnterpriseReg string
	NotifyURL     string

	// Gateway
	BaseURL    string
	SandboxURL string
	Sandbox    bool
	RoutesPath string // optional YAML override of the api name -> path table
	RateLimit  int    // requests per second
	Timeout    time.Duration

	// Request journal; empty disables it
	JournalPath string

	// Telemetry
	LogLevel  string
	SignDebug bool
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Appid:         envStr("VIPSPT_APPID", ""),
		SecretKey:     envStr("VIPSPT_SECRET_KEY", ""),
		MerchantID:    envStr("VIPSPT_MERCHANT_ID", ""),
		EnterpriseReg: envStr("VIPSPT_ENTERPRISE_REG", ""),
		NotifyURL:     envStr("VIPSPT_NOTIFY_URL", ""),

		BaseURL:    envStr("VIPSPT_BASE_URL", "http://www.vipspt.cn"),
		SandboxURL: envStr("VIPSPT_SANDBOX_URL", "http://47.107.41.218:8093"),
		Sandbox:    envBool("VIPSPT_SANDBOX", false),
		RoutesPath: envStr("VIPSPT_ROUTES_PATH", ""),
		RateLimit:  envInt("VIPSPT_RATE_LIMIT", 10),
		Timeout:    time.Duration(envInt("VIPSPT_TIMEOUT_SEC", 10)) * time.Second,

		JournalPath: envStr("JOURNAL_PATH", "data/journal.db"),

		LogLevel: envStr("LOG_LEVEL", "info"),
		// Even when enabled only the canonical string is logged, never the secret.
		SignDebug: envBool("SIGN_DEBUG", false),
	}
}

// GatewayURL is the sandbox URL when Sandbox is set, otherwise BaseURL.
func (c *Config) GatewayURL() string {
	if c.Sandbox {
		return c.SandboxURL
	}
	return c.BaseURL
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}
