package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"todo-sync-go/internal/domain/todos"
	"todo-sync-go/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPPort string
	Env      string
	LogFile  string
	DB       DBConfig
	Supabase SupabaseConfig
	HTTP     HTTPConfig
	Todo     TodoConfig
	Client   ClientConfig
}

type DBConfig struct {
	Driver          string
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type SupabaseConfig struct {
	URL            string
	PublishableKey string
	AuthTimeout    time.Duration
	SkipAuth       bool
	MockUserID     string
	MockUserEmail  string
	MockUserName   string
	MockUserAvatar string
}

type HTTPConfig struct {
	AllowedOrigins     []string
	StreamPingInterval time.Duration
}

type TodoConfig struct {
	Path  string
	Order todos.Order
}

// ClientConfig is read by the terminal client only.
type ClientConfig struct {
	ServerURL string
	AuthToken string
}

func Load(log logger.Logger) (Config, error) {
	err := loadDotEnv(log)
	if err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	order, ok := todos.ParseOrder(getEnv("TODO_ORDER", string(todos.OrderNewestFirst)))
	if !ok {
		return Config{}, fmt.Errorf("TODO_ORDER must be %q or %q", todos.OrderNewestFirst, todos.OrderStore)
	}

	cfg := Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogFile:  getEnv("LOG_FILE", ""),
		DB: DBConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			DSN:             getEnv("DB_DSN", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "todo_sync"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			SQLitePath:      getEnv("SQLITE_PATH", "todo-sync.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Supabase: SupabaseConfig{
			URL:            getEnv("SUPABASE_URL", ""),
			PublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
			AuthTimeout:    getEnvDuration("SUPABASE_AUTH_TIMEOUT", 5*time.Second),
			SkipAuth:       getEnvBool("AUTH_SKIP", false),
			MockUserID:     getEnv("AUTH_MOCK_USER_ID", "00000000-0000-0000-0000-000000000001"),
			MockUserEmail:  getEnv("AUTH_MOCK_USER_EMAIL", ""),
			MockUserName:   getEnv("AUTH_MOCK_USER_NAME", ""),
			MockUserAvatar: getEnv("AUTH_MOCK_USER_AVATAR_URL", ""),
		},
		HTTP: HTTPConfig{
			AllowedOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			StreamPingInterval: getEnvDuration("STREAM_PING_INTERVAL", 30*time.Second),
		},
		Todo: TodoConfig{
			Path:  getEnv("TODO_PATH", "todos"),
			Order: order,
		},
		Client: ClientConfig{
			ServerURL: getEnv("TODO_SERVER_URL", ""),
			AuthToken: getEnv("TODO_AUTH_TOKEN", ""),
		},
	}

	switch cfg.DB.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if !cfg.Supabase.SkipAuth && cfg.Supabase.URL == "" {
		log.Warn("config: SUPABASE_URL is empty, authenticated requests will fail")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}
