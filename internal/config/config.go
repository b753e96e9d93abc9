package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	// 可选的全站 Basic Auth
	BasicAuthUser string
	BasicAuthPass string

	// 免认证路径前缀，逗号分隔
	BasicAuthExempt []string

	LogLevel  string
	LogFormat string

	TunablesPath string
	SourcesPath  string

	// 未配置 webhook 时只打印帖子（dry run）
	WebhookURL   string
	WebhookToken string
	ImagePath    string

	// 未指定 POST_IMAGE_PATH 时每期在 CoverDir 下生成封面
	CoverEnabled bool
	CoverDir     string

	FetchTimeout   time.Duration
	BrowserEnabled bool
}

// Load reads the process configuration from the environment, after loading a
// .env file from the working directory if there is one.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppPort:         getEnv("APP_PORT", "9000"),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		CronSpec:        getEnv("CRON_SPEC", "0 13 * * 1"),
		BasicAuthUser:   getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:   getEnv("APP_BASIC_PASS", ""),
		BasicAuthExempt: getList("APP_BASIC_EXEMPT", []string{"/health"}),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		TunablesPath:    getEnv("TUNABLES_PATH", "configs/tunables.yaml"),
		SourcesPath:     getEnv("SOURCES_PATH", "configs/sources.yaml"),
		WebhookURL:      getEnv("POST_WEBHOOK_URL", ""),
		WebhookToken:    getEnv("POST_WEBHOOK_TOKEN", ""),
		ImagePath:       getEnv("POST_IMAGE_PATH", ""),
		CoverEnabled:    getBool("COVER_ENABLED", true),
		CoverDir:        getEnv("COVER_DIR", "images"),
		FetchTimeout:    getDuration("FETCH_TIMEOUT", 45*time.Second),
		BrowserEnabled:  getBool("BROWSER_ENABLED", false),
	}
}

// DryRun reports whether posts are only logged.
func (c *Config) DryRun() bool {
	return strings.TrimSpace(c.WebhookURL) == ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// 兼容纯数字（秒）
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
