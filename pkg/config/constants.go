package config

// EnvPrefix is passed to envconfig; explicit envconfig tags take precedence.
const EnvPrefix = "emarket"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "EMARKET_DB_DSN"
	EnvDBHost = "EMARKET_DB_HOST"
	EnvDBUser = "EMARKET_DB_USER"
	EnvDBName = "EMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
