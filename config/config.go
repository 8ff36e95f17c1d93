package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                string
	Port               string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For for rate limiting.
	TrustedProxies    []string
	TranslationsDir   string
	CommissionPercent int

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	MPesa    MPesaConfig
}

type DatabaseConfig struct {
	Driver          string // mysql or sqlite
	DSN             string
	Host            string
	Port            string
	User            string
	Pass            string
	Name            string
	Params          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectRetries  int
	Debug           bool
}

type RedisConfig struct {
	Addr    string
	Pass    string
	DB      int
	Channel string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type MPesaConfig struct {
	Enabled            bool
	BaseURL            string
	ConsumerKey        string
	ConsumerSecret     string
	ShortCode          string
	B2CShortCode       string
	InitiatorName      string
	SecurityCredential string
	CallbackBaseURL    string
	// CallbackWhitelist lists gateway source IPs the callback limiter skips.
	CallbackWhitelist []string
	TokenMargin       time.Duration
	Timeout           time.Duration
}

// LoadDotEnv copies values from .env into the process environment without
// overriding variables that are already set.
func LoadDotEnv(paths ...string) {
	envMap, err := godotenv.Read(paths...)
	if err != nil {
		return
	}
	for k, v := range envMap {
		if os.Getenv(k) == "" {
			_ = os.Setenv(k, v)
		}
	}
}

func Load() (Config, error) {
	env := strings.ToLower(getEnv("ENV", "development"))
	cfg := Config{
		Env:                env,
		Port:               getEnv("PORT", "8080"),
		RequestTimeout:     time.Duration(getEnvAsInt("REQ_TIMEOUT_SEC", 10)) * time.Second,
		ShutdownTimeout:    time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SEC", 30)) * time.Second,
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		TrustedProxies:     splitList(os.Getenv("TRUSTED_PROXIES")),
		TranslationsDir:    getEnv("TRANSLATIONS_DIR", "translator/translation"),
		CommissionPercent:  getEnvAsInt("PLATFORM_COMMISSION_PERCENT", 10),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "mysql")),
			DSN:             os.Getenv("DB_DSN"),
			Host:            getEnv("DB_HOST", "127.0.0.1"),
			Port:            getEnv("DB_PORT", "3306"),
			User:            getEnv("DB_USER", "root"),
			Pass:            os.Getenv("DB_PASS"),
			Name:            getEnv("DB_NAME", "kazi"),
			Params:          getEnv("DB_PARAMS", "charset=utf8mb4&parseTime=True&loc=UTC"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: time.Duration(getEnvAsInt("DB_CONN_MAX_LIFETIME", 3600)) * time.Second,
			ConnectRetries:  getEnvAsInt("DB_CONNECT_RETRIES", 5),
			Debug:           env == "development",
		},
		Redis: RedisConfig{
			Addr:    strings.ReplaceAll(os.Getenv("REDIS_ADDR"), " ", ""),
			Pass:    os.Getenv("REDIS_PASS"),
			DB:      getEnvAsInt("REDIS_DB", 0),
			Channel: getEnv("REDIS_CHANNEL", "kazi:realtime"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			TTL:    time.Duration(getEnvAsInt("JWT_TTL_MIN", 24*60)) * time.Minute,
		},
		MPesa: MPesaConfig{
			Enabled:            getEnv("MPESA_ENABLED", "true") == "true",
			BaseURL:            getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:        os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:     os.Getenv("MPESA_CONSUMER_SECRET"),
			ShortCode:          getEnv("MPESA_SHORTCODE", "600000"),
			B2CShortCode:       getEnv("MPESA_B2C_SHORTCODE", getEnv("MPESA_SHORTCODE", "600000")),
			InitiatorName:      getEnv("MPESA_INITIATOR_NAME", "testapi"),
			SecurityCredential: os.Getenv("MPESA_SECURITY_CREDENTIAL"),
			CallbackBaseURL:    strings.TrimRight(os.Getenv("MPESA_CALLBACK_BASE_URL"), "/"),
			CallbackWhitelist:  splitList(os.Getenv("MPESA_CALLBACK_WHITELIST")),
			TokenMargin:        time.Duration(getEnvAsInt("MPESA_TOKEN_MARGIN_SEC", 60)) * time.Second,
			Timeout:            time.Duration(getEnvAsInt("MPESA_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
	return cfg, cfg.Validate()
}

// Validate reports every missing or invalid value at once.
func (c Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.DSN == "" && (c.Database.User == "" || c.Database.Name == "") {
			errs = append(errs, errors.New("DB_DSN or DB_USER/DB_NAME must be set for mysql"))
		}
	case "sqlite":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DB_DSN must be set for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.Database.Driver))
	}
	if c.CommissionPercent < 0 || c.CommissionPercent >= 100 {
		errs = append(errs, errors.New("PLATFORM_COMMISSION_PERCENT must be between 0 and 99"))
	}
	if c.MPesa.Enabled {
		if c.MPesa.ConsumerKey == "" || c.MPesa.ConsumerSecret == "" {
			errs = append(errs, errors.New("MPESA_CONSUMER_KEY and MPESA_CONSUMER_SECRET are required"))
		}
		if c.MPesa.CallbackBaseURL == "" {
			errs = append(errs, errors.New("MPESA_CALLBACK_BASE_URL is required"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
