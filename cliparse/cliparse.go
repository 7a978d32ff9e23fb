package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Log level constants
const (
	LogLevelInfo    = "info"
	LogLevelDebug   = "debug"
	LogLevelError   = "error"
	LogLevelWarning = "warning"
)

// Log type constants
const (
	LogTypeConsole = "console"
	LogTypeFile    = "file"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// LoggerSettings controls where and how verbosely the server logs
type LoggerSettings struct {
	LogLevel   string `validate:"required,oneof=info debug error warning"`
	LogType    string `validate:"required,oneof=console file"`
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// Validate checks that all fields in LoggerSettings are valid
func (s *LoggerSettings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("validation failed for LoggerSettings: %w", err)
	}

	if s.LogType == LogTypeFile {
		if s.FilePath == "" {
			return errors.New("file path is required for file logger")
		}
		if s.MaxSize < 1 || s.MaxSize > 100 {
			return errors.New("max size must be between 1 and 100 MB")
		}
		if s.MaxBackups < 1 || s.MaxBackups > 10 {
			return errors.New("max backups must be between 1 and 10")
		}
		if s.MaxAge < 1 || s.MaxAge > 365 {
			return errors.New("max age must be between 1 and 365 days")
		}
	}

	return nil
}

// SMTPSettings configures outbound email. An empty Host selects the log-only sender.
type SMTPSettings struct {
	Host     string
	Port     int `validate:"omitempty,min=1,max=65535"`
	Username string
	Password string
	From     string `validate:"omitempty,email"`
}

type Config struct {
	Port               int    `validate:"min=1,max=65535"`
	DatabaseURL        string `validate:"required"`
	DatabaseType       string `validate:"oneof=sqlite postgres"`
	SiteUniqueIDPrefix string `validate:"omitempty,alphanum,lowercase"`
	IPHashSalt         string `validate:"required"`
	WebAppRootURL      string `validate:"required,url"`

	// AllowedOrigins are the only origins granted credentialed CORS.
	// The web app's own origin is always included.
	AllowedOrigins []string `validate:"dive,url"`
	// TrustProxyHeaders makes client IPs come from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	Logger LoggerSettings
	SMTP   SMTPSettings

	// Optional side services; empty values disable them
	KafkaBrokers []string
	KafkaTopic   string
	CacheBackend string `validate:"oneof=memory redis"`
	RedisURL     string `validate:"required_if=CacheBackend redis"`
	CacheSize    int    `validate:"min=1"`
}

// Validate checks the whole configuration, including nested settings
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("kafka topic required when brokers are set")
	}
	return nil
}

// ParseFlags loads .env (if present), parses flags and falls back to
// environment variables for anything not given on the command line
func ParseFlags(args []string) (Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	var kafkaBrokers, corsOrigins string

	fs := flag.NewFlagSet("wevote-server", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.SiteUniqueIDPrefix, "site-prefix", "", "Site unique id prefix used in we_vote_ids")
	fs.StringVar(&cfg.WebAppRootURL, "web-app-root", "", "Root URL of the web app, used in email links")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.IPHashSalt, "ip-salt", "", "IP hash salt (prefer env)")

	fs.StringVar(&cfg.Logger.LogLevel, "log-level", "", "Log level (info, debug, warning, error)")
	fs.StringVar(&cfg.Logger.LogType, "log-type", "", "Log type (console or file)")
	fs.StringVar(&cfg.Logger.FilePath, "log-file", "", "Log file path when log type is file")

	fs.StringVar(&corsOrigins, "cors-origins", "", "Comma separated origins allowed to call the API from a browser")
	fs.BoolVar(&cfg.TrustProxyHeaders, "trust-proxy", false, "Take client IPs from proxy headers")

	fs.StringVar(&kafkaBrokers, "kafka-brokers", "", "Comma separated Kafka brokers for analytics")
	fs.StringVar(&cfg.CacheBackend, "cache", "", "Device link cache (memory or redis)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		port, err := envInt("PORT", 8000)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	cfg.DatabaseType = firstNonEmpty(cfg.DatabaseType, os.Getenv("DATABASE_TYPE"), "sqlite")
	cfg.SiteUniqueIDPrefix = strings.ToLower(firstNonEmpty(cfg.SiteUniqueIDPrefix, os.Getenv("SITE_UNIQUE_ID_PREFIX")))
	cfg.WebAppRootURL = firstNonEmpty(cfg.WebAppRootURL, os.Getenv("WEB_APP_ROOT_URL"), "http://localhost:3000")

	corsOrigins = firstNonEmpty(corsOrigins, os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.AllowedOrigins = splitList(corsOrigins)
	if origin := originOf(cfg.WebAppRootURL); origin != "" {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
	}
	if !cfg.TrustProxyHeaders {
		trust, err := envBool("TRUST_PROXY_HEADERS")
		if err != nil {
			return Config{}, err
		}
		cfg.TrustProxyHeaders = trust
	}

	// Secrets - MUST be provided
	cfg.IPHashSalt = firstNonEmpty(cfg.IPHashSalt, os.Getenv("IP_HASH_SALT"))
	if cfg.IPHashSalt == "" {
		return Config{}, errors.New("IP_HASH_SALT required")
	}

	cfg.Logger.LogLevel = firstNonEmpty(cfg.Logger.LogLevel, os.Getenv("LOG_LEVEL"), LogLevelInfo)
	cfg.Logger.LogType = firstNonEmpty(cfg.Logger.LogType, os.Getenv("LOG_TYPE"), LogTypeConsole)
	cfg.Logger.FilePath = firstNonEmpty(cfg.Logger.FilePath, os.Getenv("LOG_FILE"))
	var err error
	if cfg.Logger.MaxSize, err = envInt("LOG_MAX_SIZE_MB", 10); err != nil {
		return Config{}, err
	}
	if cfg.Logger.MaxBackups, err = envInt("LOG_MAX_BACKUPS", 3); err != nil {
		return Config{}, err
	}
	if cfg.Logger.MaxAge, err = envInt("LOG_MAX_AGE_DAYS", 28); err != nil {
		return Config{}, err
	}

	cfg.SMTP.Host = os.Getenv("SMTP_HOST")
	if cfg.SMTP.Port, err = envInt("SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	cfg.SMTP.Username = os.Getenv("SMTP_USERNAME")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.SMTP.From = firstNonEmpty(os.Getenv("SMTP_FROM"), "info@wevote.us")

	kafkaBrokers = firstNonEmpty(kafkaBrokers, os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaBrokers = splitList(kafkaBrokers)
	cfg.KafkaTopic = firstNonEmpty(os.Getenv("KAFKA_TOPIC"), "wevote-analytics")

	cfg.CacheBackend = firstNonEmpty(cfg.CacheBackend, os.Getenv("CACHE_BACKEND"), CacheMemory)
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.CacheSize, err = envInt("CACHE_SIZE", 10000); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}

func envBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s env variable", key)
	}
	return b, nil
}

// splitList splits a comma separated value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// originOf reduces a URL to scheme://host[:port]
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
