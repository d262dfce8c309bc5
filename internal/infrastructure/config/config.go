package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	JWT       JWTConfig
	PayPal    PayPalConfig
	FX        FXConfig
	Storage   StorageConfig
	Orders    OrdersConfig
	Payments  PaymentsConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name         string
	Env          string
	Port         string
	BaseCurrency string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Required bool // when false the in-memory stores are used if Redis is unreachable
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// JWTConfig holds token verification settings. Tokens are issued elsewhere.
type JWTConfig struct {
	Secret string
	Issuer string
}

// PayPalConfig holds the PayPal REST client settings
type PayPalConfig struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	WebhookID         string
	ReturnURL         string
	CancelURL         string
	ClockSkew         time.Duration
	RequestsPerSecond float64
	Timeout           time.Duration
}

// FXConfig holds the exchange-rate provider settings
type FXConfig struct {
	ProviderURL string
	APIKey      string
	MaxAge      time.Duration
	Timeout     time.Duration
}

// StorageConfig holds the object storage settings for refund attachments
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// OrdersConfig holds order lifecycle settings
type OrdersConfig struct {
	PaymentTTL          time.Duration
	AddressChangeTTL    time.Duration
	TimeoutCancelReason string
}

// PaymentsConfig holds reconciliation settings
type PaymentsConfig struct {
	WebhookReplayTTL time.Duration
	SyncMaxBatch     int
}

// JobConfig holds the settings of one fixed-delay job
type JobConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	Enabled              bool
	JobTimeout           time.Duration
	PaymentSync          JobConfig
	RefundSync           JobConfig
	OrderTimeout         JobConfig
	ShipmentCompensation JobConfig
	FXSync               JobConfig
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool // export zap logs over OTLP as well
	ProfilingEnabled  bool
	ProfilingServer   string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SHOP_ prefix (e.g., SHOP_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:         v.GetString("app.name"),
			Env:          v.GetString("app.env"),
			Port:         v.GetString("app.port"),
			BaseCurrency: v.GetString("app.base_currency"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Required: v.GetBool("redis.required"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		PayPal: PayPalConfig{
			BaseURL:           v.GetString("paypal.base_url"),
			ClientID:          v.GetString("paypal.client_id"),
			ClientSecret:      v.GetString("paypal.client_secret"),
			WebhookID:         v.GetString("paypal.webhook_id"),
			ReturnURL:         v.GetString("paypal.return_url"),
			CancelURL:         v.GetString("paypal.cancel_url"),
			ClockSkew:         v.GetDuration("paypal.clock_skew"),
			RequestsPerSecond: v.GetFloat64("paypal.requests_per_second"),
			Timeout:           v.GetDuration("paypal.timeout"),
		},
		FX: FXConfig{
			ProviderURL: v.GetString("fx.provider_url"),
			APIKey:      v.GetString("fx.api_key"),
			MaxAge:      v.GetDuration("fx.max_age"),
			Timeout:     v.GetDuration("fx.timeout"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("storage.enabled"),
			Endpoint:  v.GetString("storage.endpoint"),
			Region:    v.GetString("storage.region"),
			Bucket:    v.GetString("storage.bucket"),
			AccessKey: v.GetString("storage.access_key"),
			SecretKey: v.GetString("storage.secret_key"),
			PathStyle: v.GetBool("storage.path_style"),
		},
		Orders: OrdersConfig{
			PaymentTTL:          v.GetDuration("orders.payment_ttl"),
			AddressChangeTTL:    v.GetDuration("orders.address_change_ttl"),
			TimeoutCancelReason: v.GetString("orders.timeout_cancel_reason"),
		},
		Payments: PaymentsConfig{
			WebhookReplayTTL: v.GetDuration("payments.webhook_replay_ttl"),
			SyncMaxBatch:     v.GetInt("payments.sync_max_batch"),
		},
		Scheduler: SchedulerConfig{
			Enabled:              v.GetBool("scheduler.enabled"),
			JobTimeout:           v.GetDuration("scheduler.job_timeout"),
			PaymentSync:          loadJob(v, "payment_sync"),
			RefundSync:           loadJob(v, "refund_sync"),
			OrderTimeout:         loadJob(v, "order_timeout"),
			ShipmentCompensation: loadJob(v, "shipment_compensation"),
			FXSync:               loadJob(v, "fx_sync"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadJob(v *viper.Viper, name string) JobConfig {
	prefix := "scheduler." + name + "."
	// Jobs run unless explicitly switched off.
	enabled := true
	if v.IsSet(prefix + "enabled") {
		enabled = v.GetBool(prefix + "enabled")
	}
	return JobConfig{
		Enabled:   enabled,
		Interval:  v.GetDuration(prefix + "interval"),
		BatchSize: v.GetInt(prefix + "batch_size"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "intlshop-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.BaseCurrency == "" {
		cfg.App.BaseCurrency = "USD"
	}
	cfg.App.BaseCurrency = strings.ToUpper(strings.TrimSpace(cfg.App.BaseCurrency))

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "shop"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "shop.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"}
	}

	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "intlshop-auth"
	}

	if cfg.PayPal.BaseURL == "" {
		cfg.PayPal.BaseURL = "https://api-m.sandbox.paypal.com"
	}
	if cfg.PayPal.ClockSkew == 0 {
		cfg.PayPal.ClockSkew = 5 * time.Minute
	}
	if cfg.PayPal.RequestsPerSecond == 0 {
		cfg.PayPal.RequestsPerSecond = 10
	}
	if cfg.PayPal.Timeout == 0 {
		cfg.PayPal.Timeout = 15 * time.Second
	}

	if cfg.FX.MaxAge == 0 {
		cfg.FX.MaxAge = 8 * time.Hour
	}
	if cfg.FX.Timeout == 0 {
		cfg.FX.Timeout = 10 * time.Second
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}

	if cfg.Orders.PaymentTTL == 0 {
		cfg.Orders.PaymentTTL = 30 * time.Minute
	}
	if cfg.Orders.AddressChangeTTL == 0 {
		cfg.Orders.AddressChangeTTL = 180 * 24 * time.Hour
	}
	if cfg.Orders.TimeoutCancelReason == "" {
		cfg.Orders.TimeoutCancelReason = "payment timeout"
	}

	if cfg.Payments.WebhookReplayTTL == 0 {
		cfg.Payments.WebhookReplayTTL = 96 * time.Hour
	}
	if cfg.Payments.SyncMaxBatch == 0 {
		cfg.Payments.SyncMaxBatch = 200
	}

	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 5 * time.Minute
	}
	jobDefaults(&cfg.Scheduler.PaymentSync, time.Minute, cfg.Payments.SyncMaxBatch)
	jobDefaults(&cfg.Scheduler.RefundSync, 2*time.Minute, cfg.Payments.SyncMaxBatch)
	jobDefaults(&cfg.Scheduler.OrderTimeout, time.Minute, 200)
	jobDefaults(&cfg.Scheduler.ShipmentCompensation, 5*time.Minute, 200)
	jobDefaults(&cfg.Scheduler.FXSync, time.Hour, 100)

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.ProfilingServer == "" {
		cfg.Telemetry.ProfilingServer = "http://localhost:4040"
	}
}

func jobDefaults(job *JobConfig, interval time.Duration, batch int) {
	if job.Interval == 0 {
		job.Interval = interval
	}
	if job.BatchSize == 0 {
		job.BatchSize = batch
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if len(c.App.BaseCurrency) != 3 {
		return fmt.Errorf("app.base_currency must be a 3-letter code, got %q", c.App.BaseCurrency)
	}
	if c.Payments.SyncMaxBatch < 1 || c.Payments.SyncMaxBatch > 200 {
		return fmt.Errorf("payments.sync_max_batch must be between 1 and 200, got %d", c.Payments.SyncMaxBatch)
	}
	if c.PayPal.RequestsPerSecond < 0 {
		return fmt.Errorf("paypal.requests_per_second cannot be negative")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("database.driver must be postgres in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.PayPal.ClientID == "" || c.PayPal.ClientSecret == "" {
			return fmt.Errorf("paypal.client_id and paypal.client_secret are required in production")
		}
		if c.PayPal.WebhookID == "" {
			return fmt.Errorf("paypal.webhook_id is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
