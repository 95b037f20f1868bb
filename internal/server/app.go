// Package server wires the lostfound core together: storage, session store,
// mail transport, the delivery pool and the gRPC endpoint, and runs them
// until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/delivery"
	"github.com/dmitrijs2005/lostfound/internal/server/mail"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/lostfound/internal/server/grpc"
)

const (
	// maintenanceInterval paces pending-delivery recovery and session pruning.
	maintenanceInterval = 5 * time.Minute
	// resumeBatch bounds how many pending deliveries one pass requeues.
	resumeBatch = 100
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	redis          *redis.Client
	dispatcher     *delivery.Dispatcher
	sessionService *services.SessionService
	userService    *services.UserService
	contactService *services.ContactService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.NewJSON(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, rm, err := OpenDatabase(ctx, c)
	if err != nil {
		return nil, err
	}

	store, rdb, err := newSessionStore(ctx, c, db, rm)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sender, err := NewMailSender(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	worker := delivery.NewWorker(sender, rm.ContactLogs(db), logger.With("module", "delivery"), delivery.Options{
		Timeout:     c.DeliveryTimeout,
		MaxAttempts: c.DeliveryMaxAttempts,
	})
	dispatcher := delivery.NewDispatcher(worker, c.DeliveryQueueSize, c.DeliveryWorkers, logger.With("module", "dispatcher"))

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		redis:          rdb,
		dispatcher:     dispatcher,
		sessionService: services.NewSessionService(store, c, logger.With("module", "sessions")),
		userService:    services.NewUserService(db, rm, c, dispatcher, logger.With("module", "users")),
		contactService: services.NewContactService(db, rm, c, dispatcher, logger.With("module", "contacts")),
	}, nil
}

// OpenDatabase connects to PostgreSQL and applies the embedded migrations.
func OpenDatabase(ctx context.Context, c *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}

	return db, rm, nil
}

// newSessionStore picks the shared session backend. The Redis client is
// returned so the caller can close it.
func newSessionStore(ctx context.Context, c *config.Config, db *sql.DB, rm repomanager.RepositoryManager) (sessions.Repository, *redis.Client, error) {
	switch c.SessionStore {
	case "", config.SessionStorePostgres:
		return rm.Sessions(db), nil, nil
	case config.SessionStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis connection error: %w", err)
		}
		return sessions.NewRedisRepository(rdb, c.SessionIdleTimeout), rdb, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", c.SessionStore)
	}
}

// NewMailSender builds the configured mail transport.
func NewMailSender(ctx context.Context, c *config.Config, logger logging.Logger) (mail.Sender, error) {
	switch c.MailTransport {
	case "", config.MailTransportLog:
		return mail.NewLogSender(logger.With("module", "mail")), nil
	case config.MailTransportSMTP:
		return mail.NewSMTPSender(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.MailFrom, c.DeliveryTimeout), nil
	case config.MailTransportS3:
		s, err := mail.NewS3OutboxSender(ctx, mail.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		}, c.MailFrom)
		if err != nil {
			return nil, fmt.Errorf("s3 outbox init error: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", c.MailTransport)
	}
}

// resumeAge is how old a pending contact log must be before maintenance
// treats it as orphaned rather than in flight.
func resumeAge(c *config.Config) time.Duration {
	attempts := c.DeliveryMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	age := 2 * time.Duration(attempts) * c.DeliveryTimeout
	if age < time.Minute {
		age = time.Minute
	}
	return age
}

// maintain requeues orphaned deliveries and prunes idle sessions, once at
// start and then every maintenanceInterval.
func (app *App) maintain(ctx context.Context) error {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		if _, err := app.contactService.ResumePending(ctx, resumeAge(app.config), resumeBatch); err != nil {
			app.logger.Warn(ctx, "resume pending deliveries failed", "error", err)
		}
		if n, err := app.sessionService.PruneIdle(ctx); err != nil {
			app.logger.Warn(ctx, "prune idle sessions failed", "error", err)
		} else if n > 0 {
			app.logger.Info(ctx, "idle sessions pruned", "count", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is done or a signal arrives. Deliveries still queued
// at that point stay pending and are picked up on the next start.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessionService, app.userService, app.contactService, app.config.RateLimitPerMinute)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.dispatcher.Run(gctx) })
	g.Go(func() error { return s.Run(gctx) })
	g.Go(func() error { return app.maintain(gctx) })

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
	}

	return errors.Join(err, app.close())
}

func (app *App) close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	errs = append(errs, app.db.Close())
	app.logger.Info(context.Background(), "App stopped")
	return errors.Join(errs...)
}
