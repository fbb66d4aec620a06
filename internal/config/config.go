// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// а .env (если есть) подхватывается godotenv до разбора.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"dealdesk"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"dealdesk"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Kolkata"`

	// --- HTTP ---
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPRequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"30s"`

	// --- Admin ---
	// Argon2id-хеш токена админки (scripts/generate_hash.go)
	AdminTokenHash string  `envconfig:"ADMIN_TOKEN_HASH" required:"true"`
	AdminIDsRaw    string  `envconfig:"ADMIN_IDS"`
	AdminIDs       []int64 `envconfig:"-"` // заполним вручную

	// --- Notifications ---
	// Пустой токен = уведомления только во внутренний инбокс
	TelegramBotToken      string `envconfig:"TELEGRAM_BOT_TOKEN"`
	FeatureTelegramNotify bool   `envconfig:"FEATURE_TELEGRAM_NOTIFY" default:"true"`

	// --- Cache ---
	// Пустой адрес = инвалидация кэша отключена
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Deals ---
	DealLifetimeDays     int    `envconfig:"DEAL_LIFETIME_DAYS" default:"90"`
	DealAutoClosePenalty int64  `envconfig:"DEAL_AUTOCLOSE_PENALTY" default:"5"`
	DealSweepCron        string `envconfig:"DEAL_SWEEP_CRON" default:"0 9 * * *"`
	PostSweepCron        string `envconfig:"POST_SWEEP_CRON" default:"0 10 * * *"`
	SweepConcurrency     int    `envconfig:"SWEEP_CONCURRENCY" default:"4"`
	UnlockCost           int64  `envconfig:"UNLOCK_COST" default:"1"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// DealLifetime: срок жизни сделки до автозакрытия.
func (c *Config) DealLifetime() time.Duration {
	return time.Duration(c.DealLifetimeDays) * 24 * time.Hour
}

// IsAdmin проверяет, входит ли пользователь в ADMIN_IDS.
// Пустой список означает «достаточно токена».
func (c *Config) IsAdmin(userID int64) bool {
	if len(c.AdminIDs) == 0 {
		return true
	}
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.DealLifetimeDays <= 0 {
		return fmt.Errorf("DEAL_LIFETIME_DAYS должен быть > 0")
	}
	if c.DealAutoClosePenalty < 0 {
		return fmt.Errorf("DEAL_AUTOCLOSE_PENALTY не может быть отрицательным")
	}
	if c.SweepConcurrency <= 0 {
		return fmt.Errorf("SWEEP_CONCURRENCY должен быть > 0")
	}
	if c.UnlockCost <= 0 {
		return fmt.Errorf("UNLOCK_COST должен быть > 0")
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS должен быть > 0")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.DealSweepCron); err != nil {
		return fmt.Errorf("DEAL_SWEEP_CRON: %w", err)
	}
	if _, err := parser.Parse(c.PostSweepCron); err != nil {
		return fmt.Errorf("POST_SWEEP_CRON: %w", err)
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения, заполняет структуру Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ошибка чтения .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
