package config

const (
	EnvPrefix = "EASYRECS"

	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "EASYRECS_APP_ENV"
	EnvPort   = "EASYRECS_APP_PORT"

	EnvDBDSN  = "EASYRECS_DB_DSN"
	EnvDBHost = "EASYRECS_DB_HOST"
	EnvDBUser = "EASYRECS_DB_USER"
	EnvDBName = "EASYRECS_DB_NAME"

	EnvRedisURL = "EASYRECS_REDIS_URL"

	EnvShopifyAPIKey    = "EASYRECS_SHOPIFY_API_KEY"
	EnvShopifyAPISecret = "EASYRECS_SHOPIFY_API_SECRET"

	EnvBillingCycleDays       = "EASYRECS_BILLING_CYCLE_DAYS"
	EnvResolverScanLimit      = "EASYRECS_RESOLVER_SCAN_LIMIT"
	EnvAnalyticsScanBatchSize = "EASYRECS_ANALYTICS_SCAN_BATCH_SIZE"
	EnvSkipProxySignature     = "EASYRECS_SKIP_PROXY_SIGNATURE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
