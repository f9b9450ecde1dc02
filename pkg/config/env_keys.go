package config

// EnvPrefix is the envconfig prefix shared by every variable below.
const EnvPrefix = "EDUPAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "EDUPAY_APP_ENV"
	EnvPort         = "EDUPAY_APP_PORT"
	EnvLogLevel     = "EDUPAY_LOG_LEVEL"
	EnvLogWarnStack = "EDUPAY_LOG_WARN_STACK"

	EnvDBDSN      = "EDUPAY_DB_DSN"
	EnvDBDriver   = "EDUPAY_DB_DRIVER"
	EnvDBHost     = "EDUPAY_DB_HOST"
	EnvDBPort     = "EDUPAY_DB_PORT"
	EnvDBUser     = "EDUPAY_DB_USER"
	EnvDBPassword = "EDUPAY_DB_PASSWORD"
	EnvDBName     = "EDUPAY_DB_NAME"
	EnvDBSSLMode  = "EDUPAY_DB_SSLMODE"

	EnvRedisURL = "EDUPAY_REDIS_URL"

	EnvJWTSecret  = "EDUPAY_JWT_SECRET"
	EnvJWTIssuer  = "EDUPAY_JWT_ISSUER"
	EnvJWTExpMins = "EDUPAY_JWT_EXPIRATION_MINUTES"

	EnvGatewayWebhookSecret = "EDUPAY_GATEWAY_WEBHOOK_SECRET"
	EnvGatewayBankBin       = "EDUPAY_GATEWAY_BANK_BIN"
	EnvGatewayBankAccount   = "EDUPAY_GATEWAY_BANK_ACCOUNT"

	EnvEInvoiceSerial = "EDUPAY_EINVOICE_SERIAL"

	EnvArtifactsDir = "EDUPAY_ARTIFACTS_DIR"
)

// legacyDBEnvVars are the discrete connection variables honoured when
// EDUPAY_DB_DSN is unset.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
