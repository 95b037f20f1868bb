package config

import (
	"os"
	"strconv"

	"github.com/dmitrijs2005/lostfound/internal/flagx"
	"github.com/joho/godotenv"
)

// envFile is loaded, when present, before the environment is read. Variables
// already set in the process environment win over the file.
var envFile = ".env"

// parseEnv overlays LOSTFOUND_* environment variables. Secrets are usually
// delivered this way rather than via flags, which show up in ps output.
func parseEnv(config *Config) {
	_ = godotenv.Load(envFile)

	envString(&config.EndpointAddrGRPC, "LOSTFOUND_GRPC_ADDR")
	envString(&config.DatabaseDSN, "LOSTFOUND_DATABASE_DSN")
	envString(&config.SecretKey, "LOSTFOUND_SECRET_KEY")
	envString(&config.LogLevel, "LOSTFOUND_LOG_LEVEL")

	envString(&config.SessionStore, "LOSTFOUND_SESSION_STORE")
	if v, ok := lookupInt("LOSTFOUND_SESSION_IDLE"); ok {
		config.SessionIdleTimeout = minutes(v)
	}
	envString(&config.RedisAddr, "LOSTFOUND_REDIS_ADDR")
	envString(&config.RedisPassword, "LOSTFOUND_REDIS_PASSWORD")
	if v, ok := lookupInt("LOSTFOUND_REDIS_DB"); ok {
		config.RedisDB = v
	}

	if v, ok := os.LookupEnv("LOSTFOUND_EMAIL_DOMAINS"); ok {
		config.AllowedEmailDomains = flagx.SplitList(v)
	}
	if v, ok := os.LookupEnv("LOSTFOUND_AUTO_APPROVE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.AutoApprove = b
		}
	}
	envString(&config.AppURL, "LOSTFOUND_APP_URL")

	envString(&config.MailTransport, "LOSTFOUND_MAIL_TRANSPORT")
	envString(&config.SMTPHost, "LOSTFOUND_SMTP_HOST")
	if v, ok := lookupInt("LOSTFOUND_SMTP_PORT"); ok {
		config.SMTPPort = v
	}
	envString(&config.SMTPUser, "LOSTFOUND_SMTP_USER")
	envString(&config.SMTPPassword, "LOSTFOUND_SMTP_PASSWORD")

	envString(&config.S3RootUser, "LOSTFOUND_S3_ROOT_USER")
	envString(&config.S3RootPassword, "LOSTFOUND_S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "LOSTFOUND_S3_BUCKET")
	envString(&config.S3Region, "LOSTFOUND_S3_REGION")
	envString(&config.S3BaseEndpoint, "LOSTFOUND_S3_BASE_ENDPOINT")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
