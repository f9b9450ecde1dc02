package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	WebhookLimit WebhookRateLimitConfig
	EInvoice     EInvoiceConfig
	Artifacts    ArtifactsConfig
	Rendering    RenderingConfig
	Printing     PrintingConfig
	SMTP         SMTPConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"EDUPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"EDUPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"EDUPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EDUPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"EDUPAY_DB_DSN"`
	Driver string `envconfig:"EDUPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EDUPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"EDUPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EDUPAY_DB_USER"`
	LegacyPassword string `envconfig:"EDUPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"EDUPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"EDUPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EDUPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EDUPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EDUPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EDUPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EDUPAY_REDIS_URL" required:"true"`
	Password     string        `envconfig:"EDUPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"EDUPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EDUPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EDUPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EDUPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EDUPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EDUPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"EDUPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"EDUPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"EDUPAY_JWT_EXPIRATION_MINUTES" required:"true"`

	// Agent tokens outlive interactive sessions; agents re-register on restart.
	AgentTokenTTLMinutes int `envconfig:"EDUPAY_AGENT_TOKEN_TTL_MINUTES" default:"525600"`
}

// AgentTokenTTL returns the print agent bearer token TTL configured in minutes.
func (j JWTConfig) AgentTokenTTL() time.Duration {
	if j.AgentTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.AgentTokenTTLMinutes) * time.Minute
}

type GatewayConfig struct {
	WebhookSecret string `envconfig:"EDUPAY_GATEWAY_WEBHOOK_SECRET" required:"true"`

	BankBin         string `envconfig:"EDUPAY_GATEWAY_BANK_BIN" default:"970436"`
	BankAccount     string `envconfig:"EDUPAY_GATEWAY_BANK_ACCOUNT" default:"0000000000"`
	BankAccountName string `envconfig:"EDUPAY_GATEWAY_BANK_ACCOUNT_NAME" default:"TRUONG TIEU HOC"`
}

type WebhookRateLimitConfig struct {
	Window time.Duration `envconfig:"EDUPAY_WEBHOOK_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"EDUPAY_WEBHOOK_RATE_LIMIT" default:"60"`
}

type EInvoiceConfig struct {
	Serial        string `envconfig:"EDUPAY_EINVOICE_SERIAL" default:"C25TTA"`
	SellerName    string `envconfig:"EDUPAY_EINVOICE_SELLER_NAME" default:"Truong Tieu Hoc"`
	SellerTaxCode string `envconfig:"EDUPAY_EINVOICE_SELLER_TAX_CODE" default:"0000000000"`
	SellerAddress string `envconfig:"EDUPAY_EINVOICE_SELLER_ADDRESS"`
}

type ArtifactsConfig struct {
	Dir string `envconfig:"EDUPAY_ARTIFACTS_DIR" default:"./data/artifacts"`
}

type RenderingConfig struct {
	PDFBinary string        `envconfig:"EDUPAY_RENDER_PDF_BINARY" default:"weasyprint"`
	Timeout   time.Duration `envconfig:"EDUPAY_RENDER_TIMEOUT" default:"30s"`
}

type PrintingConfig struct {
	AgentTimeout    time.Duration `envconfig:"EDUPAY_PRINT_AGENT_TIMEOUT" default:"10s"`
	StalenessWindow time.Duration `envconfig:"EDUPAY_PRINT_STALENESS_WINDOW" default:"5m"`
	SpoolCommand    string        `envconfig:"EDUPAY_PRINT_SPOOL_COMMAND" default:"lpr"`
}

type SMTPConfig struct {
	Enabled  bool   `envconfig:"EDUPAY_SMTP_ENABLED" default:"false"`
	Host     string `envconfig:"EDUPAY_SMTP_HOST"`
	Port     int    `envconfig:"EDUPAY_SMTP_PORT" default:"587"`
	Username string `envconfig:"EDUPAY_SMTP_USERNAME"`
	Password string `envconfig:"EDUPAY_SMTP_PASSWORD"`
	From     string `envconfig:"EDUPAY_SMTP_FROM"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"EDUPAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"EDUPAY_AUTO_MIGRATE" default:"false"`
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
