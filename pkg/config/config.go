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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Changefeed    ChangefeedConfig
	Reconcile     ReconcileConfig
	Retention     RetentionConfig
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
	Env          string `envconfig:"WARRANTYFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"WARRANTYFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WARRANTYFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WARRANTYFLOW_LOG_WARN_STACK" default:"false"`
	MetricsAddr  string `envconfig:"WARRANTYFLOW_APP_METRICS_ADDR" default:""`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"WARRANTYFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"WARRANTYFLOW_DB_DSN"`
	Driver string `envconfig:"WARRANTYFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WARRANTYFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"WARRANTYFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WARRANTYFLOW_DB_USER"`
	LegacyPassword string `envconfig:"WARRANTYFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"WARRANTYFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"WARRANTYFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WARRANTYFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WARRANTYFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WARRANTYFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WARRANTYFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WARRANTYFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WARRANTYFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"WARRANTYFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"WARRANTYFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WARRANTYFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WARRANTYFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WARRANTYFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WARRANTYFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WARRANTYFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"WARRANTYFLOW_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"WARRANTYFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"WARRANTYFLOW_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"WARRANTYFLOW_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WARRANTYFLOW_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WARRANTYFLOW_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WARRANTYFLOW_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WARRANTYFLOW_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WARRANTYFLOW_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"WARRANTYFLOW_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"WARRANTYFLOW_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"WARRANTYFLOW_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WARRANTYFLOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WARRANTYFLOW_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"WARRANTYFLOW_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"WARRANTYFLOW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"WARRANTYFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"WARRANTYFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"WARRANTYFLOW_PUBSUB_DOMAIN_TOPIC" required:"true"`
	NotificationSubscription string `envconfig:"WARRANTYFLOW_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	ChangefeedSubscription   string `envconfig:"WARRANTYFLOW_PUBSUB_CHANGEFEED_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription    string `envconfig:"WARRANTYFLOW_PUBSUB_ANALYTICS_SUBSCRIPTION"`
	ArchiveSubscription      string `envconfig:"WARRANTYFLOW_PUBSUB_ARCHIVE_SUBSCRIPTION"`
}

// BigQueryConfig names the dataset and tables the settlement analytics
// pipeline writes to.
type BigQueryConfig struct {
	Dataset              string `envconfig:"WARRANTYFLOW_BIGQUERY_DATASET"`
	DomainEventsTable    string `envconfig:"WARRANTYFLOW_BIGQUERY_DOMAIN_EVENTS_TABLE" default:"domain_events"`
	SettlementFactsTable string `envconfig:"WARRANTYFLOW_BIGQUERY_SETTLEMENT_FACTS_TABLE" default:"lab_settlement_facts"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"WARRANTYFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"WARRANTYFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"WARRANTYFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// ChangefeedConfig tunes the in-process change bus and the debounced
// invalidation broker built on top of it.
type ChangefeedConfig struct {
	DebounceWindow  time.Duration `envconfig:"WARRANTYFLOW_CHANGEFEED_DEBOUNCE_WINDOW" default:"300ms"`
	RefetchInterval time.Duration `envconfig:"WARRANTYFLOW_CHANGEFEED_REFETCH_INTERVAL" default:"60s"`
	SubscriberBuf   int           `envconfig:"WARRANTYFLOW_CHANGEFEED_SUBSCRIBER_BUFFER" default:"64"`
}

// ReconcileConfig drives the cron jobs that re-derive state the event path
// may have missed.
type ReconcileConfig struct {
	WarrantyExpirySchedule string        `envconfig:"WARRANTYFLOW_RECONCILE_WARRANTY_EXPIRY_SCHEDULE" default:"0 2 * * *"`
	StalePendingSchedule   string        `envconfig:"WARRANTYFLOW_RECONCILE_STALE_PENDING_SCHEDULE" default:"*/15 * * * *"`
	StalePendingAge        time.Duration `envconfig:"WARRANTYFLOW_RECONCILE_STALE_PENDING_AGE" default:"72h"`
	SnapshotTTL            time.Duration `envconfig:"WARRANTYFLOW_RECONCILE_SNAPSHOT_TTL" default:"72h"`
}

type RetentionConfig struct {
	OutboxPublishedTTL time.Duration `envconfig:"WARRANTYFLOW_RETENTION_OUTBOX_PUBLISHED_TTL" default:"168h"`
	NotificationTTL    time.Duration `envconfig:"WARRANTYFLOW_RETENTION_NOTIFICATION_TTL" default:"2160h"`
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
