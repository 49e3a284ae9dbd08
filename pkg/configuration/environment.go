package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admin-portal/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}
	if len(existingFiles) == 0 {
		return 0, nil
	}
	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"admin_portal"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"admin-portal"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	LoginRPM  int    `env:"RATE_LIMIT_LOGIN_RPM" envDefault:"10"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.LoginRPM <= 0 {
		return fmt.Errorf("rate limit LoginRPM must be positive, got %d", r.LoginRPM)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type OutboxOptions struct {
	RelayEnabled         bool          `env:"OUTBOX_RELAY_ENABLED" envDefault:"true"`
	RelayPollInterval    time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"1s"`
	RelayBatchSize       int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
	RelayLockTTL         time.Duration `env:"OUTBOX_RELAY_LOCK_TTL" envDefault:"60s"`
	RelayMaxAttempts     int           `env:"OUTBOX_RELAY_MAX_ATTEMPTS" envDefault:"25"`
	RelaySingleActive    bool          `env:"OUTBOX_RELAY_SINGLE_ACTIVE" envDefault:"true"`
	RelayDispatchTimeout time.Duration `env:"OUTBOX_RELAY_DISPATCH_TIMEOUT" envDefault:"30s"`

	LastErrorMaxBytes int `env:"OUTBOX_LAST_ERROR_MAX_BYTES" envDefault:"2048"`

	CleanerEnabled       bool          `env:"OUTBOX_CLEANER_ENABLED" envDefault:"true"`
	CleanerInterval      time.Duration `env:"OUTBOX_CLEANER_INTERVAL" envDefault:"1m"`
	CleanerRetention     time.Duration `env:"OUTBOX_CLEANER_RETENTION" envDefault:"168h"`
	CleanerDeadRetention time.Duration `env:"OUTBOX_CLEANER_DEAD_RETENTION" envDefault:"0"`
}

type MailOptions struct {
	Driver   string `env:"MAIL_DRIVER" envDefault:"log"` // log or smtp
	From     string `env:"MAIL_FROM" envDefault:"no-reply@localhost"`
	Host     string `env:"SMTP_HOST" envDefault:"localhost"`
	Port     int    `env:"SMTP_PORT" envDefault:"25"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
}

func (m *MailOptions) Validate() error {
	switch m.Driver {
	case "log", "smtp":
		return nil
	default:
		return fmt.Errorf("invalid MAIL_DRIVER=%q (expected log|smtp)", m.Driver)
	}
}

type AuthOptions struct {
	SessionDuration       time.Duration `env:"SESSION_DURATION" envDefault:"720h"`
	SidCookieKey          string        `env:"SID_COOKIE_KEY" envDefault:"sid"`
	PartialCookieKey      string        `env:"PARTIAL_COOKIE_KEY" envDefault:"login-partial"`
	PartialSignInTTL      time.Duration `env:"PARTIAL_SIGNIN_TTL" envDefault:"10m"`
	SigningKey            string        `env:"AUTH_SIGNING_KEY" envDefault:"development-signing-key-change-me"`
	LockoutMaxAttempts    int           `env:"LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	LockoutDuration       time.Duration `env:"LOCKOUT_DURATION" envDefault:"15m"`
	EmailCodeTTL          time.Duration `env:"EMAIL_CODE_TTL" envDefault:"10m"`
	EmailCodeMaxAttempts  int           `env:"EMAIL_CODE_MAX_ATTEMPTS" envDefault:"5"`
	PasswordResetTTL      time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	TOTPIssuer            string        `env:"TOTP_ISSUER" envDefault:"Admin Portal"`
	SuperadminEmail       string        `env:"SUPERADMIN_EMAIL" envDefault:"admin@localhost"`
	SuperadminPassword    string        `env:"SUPERADMIN_PASSWORD" envDefault:"TestPass123!"`
	SuperadminTenantName  string        `env:"SUPERADMIN_TENANT_NAME" envDefault:"Default"`
	SuperadminTenantHost  string        `env:"SUPERADMIN_TENANT_DOMAIN" envDefault:"localhost"`
	WebAuthnRPID          string        `env:"WEBAUTHN_RP_ID" envDefault:"localhost"`
	WebAuthnRPDisplayName string        `env:"WEBAUTHN_RP_NAME" envDefault:"Admin Portal"`
	WebAuthnOrigins       []string      `env:"WEBAUTHN_ORIGINS" envSeparator:","`
	AuthzMode             string        `env:"AUTHZ_MODE" envDefault:"enforce"`
}

type CacheOptions struct {
	Driver      string `env:"CACHE_DRIVER" envDefault:"memory"` // memory or redis
	NumCounters int64  `env:"CACHE_NUM_COUNTERS" envDefault:"100000"`
	MaxCost     int64  `env:"CACHE_MAX_COST" envDefault:"67108864"`
	KeyPrefix   string `env:"CACHE_KEY_PREFIX" envDefault:"admin-portal"`
}

func (c *CacheOptions) Validate() error {
	switch c.Driver {
	case "memory", "redis":
		return nil
	default:
		return fmt.Errorf("invalid CACHE_DRIVER=%q (expected memory|redis)", c.Driver)
	}
}

type Configuration struct {
	Database      DatabaseOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	Outbox        OutboxOptions
	Mail          MailOptions
	Auth          AuthOptions
	Cache         CacheOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	Domain           string `env:"DOMAIN" envDefault:"localhost"`
	Origin           string `env:"ORIGIN" envDefault:"http://localhost:3200"`
	PageSize         int    `env:"PAGE_SIZE" envDefault:"25"`
	MaxPageSize      int    `env:"MAX_PAGE_SIZE" envDefault:"500"`
	MaxExportRows    int    `env:"MAX_EXPORT_ROWS" envDefault:"10000"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	SeedFile         string `env:"SEED_FILE" envDefault:""`
	// Looked up on every request; a random uuidv4 is generated when absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Falls back to request.RemoteAddr when absent.
	RealIPHeader       string   `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	CorsAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// Audit and authentication logs older than this are purged; zero keeps them forever.
	LogRetention time.Duration `env:"LOG_RETENTION" envDefault:"2160h"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production {
		return "https"
	}
	return "http"
}

func (c *Configuration) IsProduction() bool {
	return c.GoAppEnvironment == Production
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.finalize()
	return nil
}

func (c *Configuration) Validate() error {
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Mail.Validate(); err != nil {
		return err
	}
	if c.GoAppEnvironment == Production && len(strings.TrimSpace(c.Auth.SigningKey)) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters in production")
	}
	if c.Auth.LockoutMaxAttempts <= 0 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be positive, got %d", c.Auth.LockoutMaxAttempts)
	}
	return nil
}

func (c *Configuration) finalize() {
	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	if os.Getenv("ORIGIN") == "" {
		// Standard ports outside development.
		if c.GoAppEnvironment == "development" {
			c.Origin = fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, c.ServerPort)
		} else {
			c.Origin = fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
		}
	}
	if len(c.Auth.WebAuthnOrigins) == 0 {
		c.Auth.WebAuthnOrigins = []string{c.Origin}
	}
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
