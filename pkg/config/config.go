package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	Session       SessionConfig
	Password      PasswordConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	OAuth         OAuthConfig
	CORS          CORSConfig
	Idempotency   IdempotencyConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRAILPACK_APP_ENV" required:"true"`
	Port         string `envconfig:"TRAILPACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRAILPACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRAILPACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TRAILPACK_DB_DSN"`
	Driver string `envconfig:"TRAILPACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRAILPACK_DB_HOST"`
	LegacyPort     int    `envconfig:"TRAILPACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRAILPACK_DB_USER"`
	LegacyPassword string `envconfig:"TRAILPACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRAILPACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRAILPACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRAILPACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRAILPACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRAILPACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRAILPACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"TRAILPACK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRAILPACK_REDIS_ADDR"`
	Password     string        `envconfig:"TRAILPACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRAILPACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRAILPACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRAILPACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRAILPACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRAILPACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRAILPACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SessionConfig struct {
	CookieName string        `envconfig:"TRAILPACK_SESSION_COOKIE_NAME" default:"trailpack.sid"`
	TTL        time.Duration `envconfig:"TRAILPACK_SESSION_TTL" default:"168h"`
	Secure     bool          `envconfig:"TRAILPACK_SESSION_SECURE" default:"false"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TRAILPACK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TRAILPACK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TRAILPACK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TRAILPACK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TRAILPACK_ARGON_KEY_LEN" default:"32"`
}

// RateLimitConfig sets the storefront's fixed-window limits. A zero limit
// turns that counter off.
type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TRAILPACK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TRAILPACK_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TRAILPACK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TRAILPACK_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TRAILPACK_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TRAILPACK_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`

	// Guest token guessing on POST /orders/claim.
	ClaimWindow       time.Duration `envconfig:"TRAILPACK_RATE_LIMIT_CLAIM_WINDOW" default:"15m"`
	ClaimSessionLimit int           `envconfig:"TRAILPACK_RATE_LIMIT_CLAIM_SESSION_LIMIT" default:"10"`
	ClaimUserLimit    int           `envconfig:"TRAILPACK_RATE_LIMIT_CLAIM_USER_LIMIT" default:"10"`
	ClaimIPLimit      int           `envconfig:"TRAILPACK_RATE_LIMIT_CLAIM_IP_LIMIT" default:"30"`

	// POST /payments/mock takes a guest token too.
	PaymentWindow       time.Duration `envconfig:"TRAILPACK_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentSessionLimit int           `envconfig:"TRAILPACK_RATE_LIMIT_PAYMENT_SESSION_LIMIT" default:"10"`
	PaymentIPLimit      int           `envconfig:"TRAILPACK_RATE_LIMIT_PAYMENT_IP_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TRAILPACK_AUTO_MIGRATE" default:"false"`
}

type OAuthConfig struct {
	GoogleClientID       string        `envconfig:"TRAILPACK_OAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string        `envconfig:"TRAILPACK_OAUTH_GOOGLE_CLIENT_SECRET"`
	FacebookClientID     string        `envconfig:"TRAILPACK_OAUTH_FACEBOOK_CLIENT_ID"`
	FacebookClientSecret string        `envconfig:"TRAILPACK_OAUTH_FACEBOOK_CLIENT_SECRET"`
	CallbackBaseURL      string        `envconfig:"TRAILPACK_OAUTH_CALLBACK_BASE_URL" default:"http://localhost:8080"`
	SuccessRedirect      string        `envconfig:"TRAILPACK_OAUTH_SUCCESS_REDIRECT" default:"http://localhost:3000/"`
	StateSecret          string        `envconfig:"TRAILPACK_OAUTH_STATE_SECRET"`
	StateTTL             time.Duration `envconfig:"TRAILPACK_OAUTH_STATE_TTL" default:"10m"`
}

// GoogleEnabled reports whether Google sign-in credentials are present.
func (o OAuthConfig) GoogleEnabled() bool {
	return o.GoogleClientID != "" && o.GoogleClientSecret != ""
}

// FacebookEnabled reports whether Facebook sign-in credentials are present.
func (o OAuthConfig) FacebookEnabled() bool {
	return o.FacebookClientID != "" && o.FacebookClientSecret != ""
}

// CallbackURL builds the provider callback address registered with the provider.
func (o OAuthConfig) CallbackURL(provider string) string {
	base := strings.TrimRight(strings.TrimSpace(o.CallbackBaseURL), "/")
	return fmt.Sprintf("%s/auth/oauth/%s/callback", base, provider)
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TRAILPACK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"TRAILPACK_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TRAILPACK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"TRAILPACK_PUBSUB_ORDERS_TOPIC" default:"trailpack-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRAILPACK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRAILPACK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRAILPACK_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// MetricsAddr exposes /metrics for the publisher when set, e.g. ":9102".
	MetricsAddr string `envconfig:"TRAILPACK_OUTBOX_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DBDriverSQLite)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
