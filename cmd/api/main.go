package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tenant-admin/internal/account"
	"tenant-admin/internal/audit"
	"tenant-admin/internal/auth"
	"tenant-admin/internal/config"
	"tenant-admin/internal/httpapi"
	"tenant-admin/internal/identity"
	"tenant-admin/internal/metrics"
	"tenant-admin/internal/saml"
	"tenant-admin/internal/session"
	"tenant-admin/internal/tenant"
	"tenant-admin/migrations"
	"tenant-admin/pkg/logger"
	"tenant-admin/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(rootCtx, stop, cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, log *slog.Logger) error {
	if err := utils.RunMigrations(cfg.MigrateURL(), migrations.FS, "."); err != nil {
		return err
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		return err
	}
	defer rdb.Close()

	cognito, err := identity.NewCognitoFromConfig(ctx, identity.Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		UserPoolID:      cfg.AWS.UserPoolID,
		ClientID:        cfg.AWS.ClientID,
		ClientSecret:    cfg.AWS.ClientSecret,
		Domain:          cfg.AWS.Domain,
		DomainRegion:    cfg.AWS.DomainRegion,
		CallbackURL:     cfg.AWS.SAMLCallbackURL,
	})
	if err != nil {
		return err
	}

	verifier, err := auth.NewJWKSVerifier(ctx, auth.VerifierConfig{
		Region:     cfg.AWS.Region,
		UserPoolID: cfg.AWS.UserPoolID,
		ClientID:   cfg.AWS.ClientID,
	})
	if err != nil {
		return err
	}

	m := metrics.New(cfg.Metrics.Namespace)

	resolver := session.NewResolver(tenant.NewRepository(db), session.Config{
		AdminCompanyID: cfg.App.AdminCompanyID,
	}, m)
	// Let background last-active writes finish before the pool closes.
	defer resolver.Wait()

	sessionMW := auth.NewMiddleware(
		verifier,
		identity.NewCachedEmailLookup(cognito, rdb, cfg.Auth.EmailCacheTTL),
		resolver,
		auth.MiddlewareConfig{ServiceAPIKey: cfg.App.ServiceAPIKey},
		m,
	)

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	samlSvc := saml.NewService(db, cognito, saml.NewHTTPMetadataChecker(10*time.Second))
	accounts := account.NewService(cognito, account.NewPostgresDirectory(db), samlSvc, verifier, auditSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())

	registerRoutes(r, routeDeps{
		handlers: httpapi.Handlers{
			Accounts: accounts,
			SAML:     samlSvc,
			Audit:    auditSvc,
			MFA:      cognito,
			AppHome:  cfg.App.Home,
		},
		session:   sessionMW.RequireSession(),
		authLimit: httpapi.RateLimit(rdb, "ratelimit:auth", cfg.Auth.RateLimit, time.Minute),
		samlLock:  httpapi.SerializePerCompany(rdb, "lock:saml", time.Minute),
		health: httpapi.Health(2*time.Second,
			httpapi.Check{Name: "postgres", Ping: func(ctx context.Context) error {
				return utils.HealthCheck(ctx, db, 2*time.Second)
			}},
			httpapi.Check{Name: "redis", Ping: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}},
		),
		metrics: m.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	return nil
}
