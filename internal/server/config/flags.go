package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-s", "-log-level",
	"-session-store", "-session-idle", "-redis-addr", "-redis-password", "-redis-db",
	"-bcrypt-cost", "-reset-ttl", "-email-domains", "-auto-approve", "-min-message", "-max-message", "-app-url",
	"-mail", "-mail-from", "-smtp-host", "-smtp-port", "-smtp-user", "-smtp-password",
	"-delivery-timeout", "-delivery-attempts", "-delivery-workers", "-delivery-queue",
	"-rate-limit",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates Config fields from command-line flags.
//
// Core flags keep short forms:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   session token HMAC secret
//	-u/-p/-b/-g/-e  S3 user, password, bucket, region, endpoint
//
// Durations are accepted as integers: -session-idle and -reset-ttl in
// minutes, -delivery-timeout in seconds. Only flags listed in knownFlags are
// parsed so other packages may define their own.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level (debug, info, warn, error)")

	fs.StringVar(&config.SessionStore, "session-store", config.SessionStore, "session store (postgres, redis)")
	sessionIdle := fs.Int("session-idle", int(config.SessionIdleTimeout.Minutes()), "session idle timeout (in minutes)")
	fs.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "redis-password", config.RedisPassword, "redis password")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "redis database number")

	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost")
	resetTTL := fs.Int("reset-ttl", int(config.ResetTokenTTL.Minutes()), "password reset token validity (in minutes)")
	domains := flagx.StringList(config.AllowedEmailDomains)
	fs.Var(&domains, "email-domains", "comma separated list of allowed email domains")
	fs.BoolVar(&config.AutoApprove, "auto-approve", config.AutoApprove, "activate new accounts on registration")
	fs.IntVar(&config.MinMessageLength, "min-message", config.MinMessageLength, "minimum contact message length")
	fs.IntVar(&config.MaxMessageLength, "max-message", config.MaxMessageLength, "maximum contact message length")
	fs.StringVar(&config.AppURL, "app-url", config.AppURL, "public URL of the web application")

	fs.StringVar(&config.MailTransport, "mail", config.MailTransport, "mail transport (log, smtp, s3)")
	fs.StringVar(&config.MailFrom, "mail-from", config.MailFrom, "sender address")
	fs.StringVar(&config.SMTPHost, "smtp-host", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "smtp-port", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUser, "smtp-user", config.SMTPUser, "SMTP user")
	fs.StringVar(&config.SMTPPassword, "smtp-password", config.SMTPPassword, "SMTP password")

	deliveryTimeout := fs.Int("delivery-timeout", int(config.DeliveryTimeout.Seconds()), "delivery timeout (in seconds)")
	fs.IntVar(&config.DeliveryMaxAttempts, "delivery-attempts", config.DeliveryMaxAttempts, "delivery attempts per job")
	fs.IntVar(&config.DeliveryWorkers, "delivery-workers", config.DeliveryWorkers, "number of delivery workers")
	fs.IntVar(&config.DeliveryQueueSize, "delivery-queue", config.DeliveryQueueSize, "delivery queue capacity")

	fs.IntVar(&config.RateLimitPerMinute, "rate-limit", config.RateLimitPerMinute, "sensitive requests per minute per peer")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 outbox bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionIdleTimeout = minutes(*sessionIdle)
	config.ResetTokenTTL = minutes(*resetTTL)
	config.DeliveryTimeout = time.Duration(*deliveryTimeout) * time.Second
	config.AllowedEmailDomains = []string(domains)
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
