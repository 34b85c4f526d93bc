package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App             AppConfig
	DB              DBConfig
	Redis           RedisConfig
	Shopify         ShopifyConfig
	Billing         BillingConfig
	Recommendations RecommendationsConfig
	Analytics       AnalyticsConfig
	ProxyRateLimit  ProxyRateLimitConfig
	FeatureFlags    FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string        `envconfig:"EASYRECS_APP_ENV" required:"true"`
	Port           string        `envconfig:"EASYRECS_APP_PORT" required:"true"`
	LogLevel       string        `envconfig:"EASYRECS_LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"EASYRECS_LOG_FORMAT" default:"json"`
	LogWarnStack   bool          `envconfig:"EASYRECS_LOG_WARN_STACK" default:"false"`
	RequestTimeout time.Duration `envconfig:"EASYRECS_REQUEST_TIMEOUT" default:"10s"`
	AllowedOrigins []string      `envconfig:"EASYRECS_ALLOWED_ORIGINS" default:"https://admin.shopify.com"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"EASYRECS_DB_DSN"`
	Driver string `envconfig:"EASYRECS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EASYRECS_DB_HOST"`
	LegacyPort     int    `envconfig:"EASYRECS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EASYRECS_DB_USER"`
	LegacyPassword string `envconfig:"EASYRECS_DB_PASSWORD"`
	LegacyName     string `envconfig:"EASYRECS_DB_NAME"`
	LegacySSLMode  string `envconfig:"EASYRECS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EASYRECS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EASYRECS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EASYRECS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EASYRECS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EASYRECS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"EASYRECS_REDIS_ADDR"`
	Password     string        `envconfig:"EASYRECS_REDIS_PASSWORD"`
	DB           int           `envconfig:"EASYRECS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EASYRECS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EASYRECS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EASYRECS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EASYRECS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EASYRECS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ShopifyConfig holds the app credentials shared by session-token checks,
// app proxy signatures and Admin API calls.
type ShopifyConfig struct {
	APIKey      string        `envconfig:"EASYRECS_SHOPIFY_API_KEY" required:"true"`
	APISecret   string        `envconfig:"EASYRECS_SHOPIFY_API_SECRET" required:"true"`
	APIVersion  string        `envconfig:"EASYRECS_SHOPIFY_API_VERSION" default:"2025-01"`
	HTTPTimeout time.Duration `envconfig:"EASYRECS_SHOPIFY_HTTP_TIMEOUT" default:"10s"`
}

type BillingConfig struct {
	CycleDays int `envconfig:"EASYRECS_BILLING_CYCLE_DAYS" default:"30"`
}

// CycleLength returns the billing cycle length as a duration.
func (b BillingConfig) CycleLength() time.Duration {
	return time.Duration(b.CycleDays) * 24 * time.Hour
}

type RecommendationsConfig struct {
	// ResolverScanLimit bounds how many candidate overrides are read per resolve call.
	ResolverScanLimit int `envconfig:"EASYRECS_RESOLVER_SCAN_LIMIT" default:"10"`
}

type AnalyticsConfig struct {
	ScanBatchSize int `envconfig:"EASYRECS_ANALYTICS_SCAN_BATCH_SIZE" default:"250"`
}

type ProxyRateLimitConfig struct {
	Window  time.Duration `envconfig:"EASYRECS_PROXY_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit int           `envconfig:"EASYRECS_PROXY_RATE_LIMIT_IP_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate          bool `envconfig:"EASYRECS_AUTO_MIGRATE" default:"false"`
	SkipProxySignature   bool `envconfig:"EASYRECS_SKIP_PROXY_SIGNATURE" default:"false"`
	RequireIdempotencyID bool `envconfig:"EASYRECS_REQUIRE_IDEMPOTENCY_KEY" default:"false"`
}

func (c *Config) validate() error {
	if c.Billing.CycleDays <= 0 {
		return fmt.Errorf("%s must be positive", EnvBillingCycleDays)
	}
	if c.Recommendations.ResolverScanLimit <= 0 {
		return fmt.Errorf("%s must be positive", EnvResolverScanLimit)
	}
	if c.Analytics.ScanBatchSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvAnalyticsScanBatchSize)
	}
	if c.FeatureFlags.SkipProxySignature && c.App.IsProd() {
		return fmt.Errorf("%s cannot be enabled in %s", EnvSkipProxySignature, AppEnvProd)
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
