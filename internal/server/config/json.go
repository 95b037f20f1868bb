package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/flagx"
	"github.com/dmitrijs2005/lostfound/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations accept
// both "10s" strings and integer nanoseconds. Pointer fields distinguish
// "absent" from zero values so a partial file only overrides what it names.
type JsonConfig struct {
	EndpointAddrGRPC *string `json:"endpoint_addr_grpc"`
	DatabaseDSN      *string `json:"database_dsn"`
	SecretKey        *string `json:"secret_key"`
	LogLevel         *string `json:"log_level"`

	SessionStore       *string         `json:"session_store"`
	SessionIdleTimeout *timex.Duration `json:"session_idle_timeout"`
	RedisAddr          *string         `json:"redis_addr"`
	RedisPassword      *string         `json:"redis_password"`
	RedisDB            *int            `json:"redis_db"`

	BcryptCost          *int            `json:"bcrypt_cost"`
	ResetTokenTTL       *timex.Duration `json:"reset_token_ttl"`
	AllowedEmailDomains []string        `json:"allowed_email_domains"`
	AutoApprove         *bool           `json:"auto_approve"`
	MinMessageLength    *int            `json:"min_message_length"`
	MaxMessageLength    *int            `json:"max_message_length"`
	AppURL              *string         `json:"app_url"`

	MailTransport *string `json:"mail_transport"`
	MailFrom      *string `json:"mail_from"`
	SMTPHost      *string `json:"smtp_host"`
	SMTPPort      *int    `json:"smtp_port"`
	SMTPUser      *string `json:"smtp_user"`
	SMTPPassword  *string `json:"smtp_password"`

	DeliveryTimeout     *timex.Duration `json:"delivery_timeout"`
	DeliveryMaxAttempts *int            `json:"delivery_max_attempts"`
	DeliveryWorkers     *int            `json:"delivery_workers"`
	DeliveryQueueSize   *int            `json:"delivery_queue_size"`

	RateLimitPerMinute *int `json:"rate_limit_per_minute"`

	S3RootUser     *string `json:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// field it sets into config. Unreadable files or invalid JSON panic, the
// same as a bad flag.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)

	setString(&config.SessionStore, c.SessionStore)
	setDuration(&config.SessionIdleTimeout, c.SessionIdleTimeout)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)

	setInt(&config.BcryptCost, c.BcryptCost)
	setDuration(&config.ResetTokenTTL, c.ResetTokenTTL)
	if c.AllowedEmailDomains != nil {
		config.AllowedEmailDomains = c.AllowedEmailDomains
	}
	if c.AutoApprove != nil {
		config.AutoApprove = *c.AutoApprove
	}
	setInt(&config.MinMessageLength, c.MinMessageLength)
	setInt(&config.MaxMessageLength, c.MaxMessageLength)
	setString(&config.AppURL, c.AppURL)

	setString(&config.MailTransport, c.MailTransport)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)

	setDuration(&config.DeliveryTimeout, c.DeliveryTimeout)
	setInt(&config.DeliveryMaxAttempts, c.DeliveryMaxAttempts)
	setInt(&config.DeliveryWorkers, c.DeliveryWorkers)
	setInt(&config.DeliveryQueueSize, c.DeliveryQueueSize)

	setInt(&config.RateLimitPerMinute, c.RateLimitPerMinute)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
