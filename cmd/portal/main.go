// Command portal serves the staff portal authentication API.
//
//	@title						Clinic Staff Portal API
//	@version					1.0
//	@description				Authentication and role-based access control for clinic staff accounts.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/clinicdesk/staff-portal/internal/api"
	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
	"github.com/clinicdesk/staff-portal/internal/core/security"
	"github.com/clinicdesk/staff-portal/internal/core/service"
	"github.com/clinicdesk/staff-portal/internal/infrastructure/db/mongo"
	"github.com/clinicdesk/staff-portal/internal/infrastructure/db/postgres"
	"github.com/clinicdesk/staff-portal/internal/infrastructure/db/redis"
	ophttp "github.com/clinicdesk/staff-portal/internal/infrastructure/http"
	"github.com/clinicdesk/staff-portal/internal/infrastructure/http/handlers"
	"github.com/clinicdesk/staff-portal/internal/infrastructure/messaging/kafka"
	"github.com/clinicdesk/staff-portal/internal/infrastructure/queue"
	"github.com/clinicdesk/staff-portal/internal/pkg/config"
	"github.com/clinicdesk/staff-portal/internal/pkg/telemetry"
	"github.com/clinicdesk/staff-portal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	seedAdmin := flag.Bool("seed-admin", false, "create the admin account from SEED_ADMIN_USERNAME/SEED_ADMIN_PASSWORD and continue")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *seedAdmin); err != nil {
		log := logger.Get()
		log.Error().Err(err).Msg("portal stopped")
		os.Exit(1)
	}
}

// closer is run on shutdown in reverse registration order.
type closer struct {
	name string
	fn   func(context.Context) error
}

func run(ctx context.Context, seedAdmin bool) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Service: cfg.Telemetry.ServiceName,
	})
	for _, name := range cfg.Fallbacks() {
		log.Warn().Str("variable", name).Msg("unset, using publicly known insecure default")
	}
	if !cfg.Auth.DemoIdentities {
		log.Info().Msg("built-in demo identities disabled")
	} else if cfg.IsProduction() {
		log.Warn().Msg("built-in demo identities are enabled in production")
	}

	var closers []closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(shutdownCtx); err != nil {
				log.Error().Err(err).Str("resource", closers[i].name).Msg("close failed")
			}
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Env,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	closers = append(closers, closer{"tracing", shutdownTracing})

	// --- Security primitives ---
	cipher, err := security.NewIdentityCipher([]byte(cfg.Auth.IdentityKey), security.CipherMode(cfg.Auth.IdentityCipher))
	if err != nil {
		return fmt.Errorf("identity cipher: %w", err)
	}
	hasher, err := security.NewPasswordHasher(cfg.Auth.PasswordHasher, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	tokens := security.NewTokenService(cfg.Auth.JWTSecret)

	// --- Credential store ---
	var (
		store   ports.CredentialStore
		mongoDB *mongodriver.Database
		checks  []handlers.Check
	)
	switch cfg.Store.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, postgres.Config{
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			Database: cfg.Store.Name,
			SSLMode:  cfg.Store.SSLMode,
			PoolSize: cfg.Store.PoolSize,
		})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		closers = append(closers, closer{"postgres", func(context.Context) error { return sqlDB.Close() }})

		repo := postgres.NewUserRepository(db, cipher, cfg.Store.PoolWait)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
		store = repo
	default:
		client, db, err := connectMongo(ctx, cfg)
		if err != nil {
			return err
		}
		closers = append(closers, closer{"mongo", client.Disconnect})
		mongoDB = db

		repo := mongo.NewUserRepository(db, cipher, cfg.Store.PoolWait)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		store = repo
	}
	checks = append(checks, handlers.Check{Name: cfg.Store.Driver, Ping: store.Ping})
	log.Info().Str("driver", cfg.Store.Driver).Str("host", cfg.Store.Host).Int("pool_size", cfg.Store.PoolSize).Msg("credential store ready")

	// --- Login throttle ---
	var throttle ports.LoginThrottle
	if cfg.Throttle.MaxFailures > 0 {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		closers = append(closers, closer{"redis", func(context.Context) error { return rdb.Close() }})
		checks = append(checks, handlers.Check{Name: "redis", Ping: redis.Ping(rdb)})
		throttle = redis.NewLoginThrottle(rdb, cfg.Throttle.MaxFailures, cfg.Throttle.Window)
		log.Info().Int("max_failures", cfg.Throttle.MaxFailures).Dur("window", cfg.Throttle.Window).Msg("login throttle enabled")
	}

	// --- Audit trail ---
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	audit, err := buildAudit(ctx, cfg, mongoDB, log, &closers)
	if err != nil {
		return err
	}
	var recorder ports.AuditRecorder
	if audit != nil {
		audit.Start(auditCtx)
		closers = append(closers, closer{"audit", func(context.Context) error {
			stopAudit()
			audit.Wait()
			return nil
		}})
		recorder = audit
	}

	// --- Services ---
	authSvc := service.NewAuthService(store, hasher, tokens, service.AuthOptions{
		TokenTTL:    cfg.Auth.TokenTTL,
		DisableDemo: !cfg.Auth.DemoIdentities,
		Throttle:    throttle,
		Audit:       recorder,
	}, logger.Component("auth"))
	userSvc := service.NewUserService(store, hasher, recorder, cfg.Auth.DemoIdentities, logger.Component("users"))

	if seedAdmin {
		if err := seed(ctx, userSvc, cfg.Seed, log); err != nil {
			return err
		}
	}

	// --- HTTP ---
	apiServer := newServer(":"+cfg.Port, api.NewRouter(api.Deps{
		Auth:  authSvc,
		Users: userSvc,
		Audit: recorder,
		Log:   logger.Component("http"),
	}))
	opsServer := newServer(":"+cfg.OpsPort, ophttp.NewOpsRouter(checks...))

	errCh := make(chan error, 2)
	for name, srv := range map[string]*http.Server{"api": apiServer, "ops": opsServer} {
		name, srv := name, srv
		go func() {
			log.Info().Str("server", name).Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", name, err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range []*http.Server{apiServer, opsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("addr", srv.Addr).Msg("server shutdown failed")
		}
	}
	return serveErr
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func connectMongo(ctx context.Context, cfg *config.Config) (*mongodriver.Client, *mongodriver.Database, error) {
	uri := cfg.Store.MongoURI
	if uri == "" {
		uri = mongo.URI(cfg.Store.Host, cfg.Store.Port, cfg.Store.User, cfg.Store.Password)
	}
	return mongo.Connect(ctx, mongo.Config{
		URI:      uri,
		Database: cfg.Store.Name,
		PoolSize: uint64(cfg.Store.PoolSize),
	})
}

// buildAudit returns the dispatcher for the configured sink, or nil when
// auditing is off.
func buildAudit(ctx context.Context, cfg *config.Config, mongoDB *mongodriver.Database, log zerolog.Logger, closers *[]closer) (*queue.Dispatcher, error) {
	var sink ports.AuditSink
	switch cfg.Audit.Sink {
	case "none":
		return nil, nil
	case "log":
		sink = queue.NewLogSink(log)
	case "mongo":
		db := mongoDB
		if db == nil {
			client, auditDB, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Store.MongoURI, Database: cfg.Store.Name})
			if err != nil {
				return nil, fmt.Errorf("audit store: %w", err)
			}
			*closers = append(*closers, closer{"audit-mongo", client.Disconnect})
			db = auditDB
		}
		repo := mongo.NewAuditRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("audit indexes: %w", err)
		}
		sink = repo
	case "kafka":
		pub := kafka.NewAuditPublisher(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		*closers = append(*closers, closer{"kafka", func(context.Context) error { return pub.Close() }})
		sink = pub
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
	log.Info().Str("sink", cfg.Audit.Sink).Int("workers", cfg.Audit.Workers).Msg("audit trail enabled")
	return queue.NewDispatcher(cfg.Audit.Workers, sink, log), nil
}

// seed creates the configured admin account. An existing account with the
// same username is left untouched.
func seed(ctx context.Context, users *service.UserService, cfg config.SeedConfig, log zerolog.Logger) error {
	if cfg.AdminUsername == "" {
		return errors.New("-seed-admin requires SEED_ADMIN_USERNAME and SEED_ADMIN_PASSWORD")
	}
	system := &domain.Principal{SubjectID: "system", Role: domain.RoleAdmin, DisplayName: "system"}
	_, err := users.CreateUser(ctx, system, ports.CreateUserInput{
		Identity: cfg.AdminUsername,
		Secret:   cfg.AdminPassword,
		Role:     string(domain.RoleAdmin),
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateIdentity):
		log.Info().Msg("seed admin already present or reserved")
		return nil
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Info().Msg("seed admin created")
	return nil
}
