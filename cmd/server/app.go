package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/gate"
	"github.com/diewo77/go-onboarding/httpx"
	"github.com/diewo77/go-onboarding/internal/config"
	"github.com/diewo77/go-onboarding/internal/export"
	"github.com/diewo77/go-onboarding/internal/handlers"
	"github.com/diewo77/go-onboarding/internal/logging"
	"github.com/diewo77/go-onboarding/internal/onboarding"
	"github.com/diewo77/go-onboarding/internal/policy"
	"github.com/diewo77/go-onboarding/internal/repository"
	"github.com/diewo77/go-onboarding/internal/review"
	"github.com/diewo77/go-onboarding/internal/session"
	"github.com/diewo77/go-onboarding/internal/storage"
)

// App is the HTTP application with all routes configured.
type App struct {
	mux      *http.ServeMux
	db       *gorm.DB
	log      logrus.FieldLogger
	gate     *policy.AuthGate
	sessions *session.Manager

	auth       *handlers.AuthHandler
	onboarding *handlers.OnboardingHandler
	admin      *handlers.AdminHandler

	closers []func() error
}

// appOptions overrides collaborators in tests.
type appOptions struct {
	sessionStore  session.Store
	watchInterval time.Duration
	bcryptCost    int
}

// NewApp wires repositories, services and handlers from cfg.
func NewApp(ctx context.Context, cfg *config.Config, conn *gorm.DB, log *logrus.Logger, opts appOptions) (*App, error) {
	app := &App{mux: http.NewServeMux(), db: conn, log: log, gate: policy.NewAuthGate()}

	repo := repository.New(conn, cfg.Database.QueryTimeout)
	blobs, err := storage.NewLocal(cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}

	store := opts.sessionStore
	if store == nil {
		store, err = app.sessionStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	app.sessions = session.NewManager(cfg.Session.Secret, cfg.Session.TTL, store)

	identityOpts := []session.IdentityOption{session.WithIdentityLogger(log)}
	if opts.bcryptCost > 0 {
		identityOpts = append(identityOpts, session.WithBcryptCost(opts.bcryptCost))
	}
	identity := session.NewIdentity(repo.Users, repo.Applications, repo.Documents, identityOpts...)

	svc := onboarding.NewService(repo.Applications, repo.Profiles, repo.Documents, blobs,
		onboarding.WithAuthorizer(app.gate), onboarding.WithLogger(log), onboarding.WithSessions(app.sessions))
	engine := review.NewEngine(review.Store{
		Applicants:   repo.Applicants,
		Applications: repo.Applications,
		Documents:    repo.Documents,
	}, review.WithAuthorizer(app.gate), review.WithBlobs(blobs), review.WithLogger(log))

	var exporter handlers.Exporter
	if cfg.Sheets.Enabled() {
		sheets, err := export.NewSheets(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName,
			option.WithCredentialsFile(cfg.Sheets.CredentialsFile))
		if err != nil {
			return nil, err
		}
		exporter = sheets
	}

	app.auth = handlers.NewAuthHandler(identity, app.sessions, cfg.Session.CookieSecure, cfg.App.Dev, log)
	app.onboarding = handlers.NewOnboardingHandler(svc, opts.watchInterval)
	app.admin = handlers.NewAdminHandler(engine, exporter, log)
	app.setupRoutes()
	return app, nil
}

func (a *App) sessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if cfg.Session.Store != "redis" {
		return session.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	a.closers = append(a.closers, client.Close)
	a.log.WithField("addr", cfg.Redis.Addr).Info("session store: redis")
	return session.NewRedisStore(client), nil
}

// Close releases connections opened by NewApp.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ServeHTTP applies request logging and session resolution to every route.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := logging.Middleware(a.log)(auth.Middleware(a.sessions)(a.mux))
	handler.ServeHTTP(w, r)
}

func (a *App) setupRoutes() {
	// Public
	a.mux.HandleFunc("GET /health", a.health)
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("POST /auth/signup", a.auth.SignUp)
	a.mux.HandleFunc("POST /auth/verify", a.auth.Verify)
	a.mux.HandleFunc("POST /auth/login", a.auth.Login)

	// Any session
	a.mux.Handle("POST /auth/logout", auth.RequireAuth(http.HandlerFunc(a.auth.Logout)))
	a.mux.Handle("GET /auth/me", auth.RequireAuth(http.HandlerFunc(a.auth.Me)))

	// Applicants
	oh := a.onboarding
	a.mux.Handle("GET /onboarding/stage", a.applicant(oh.Stage))
	a.mux.Handle("GET /onboarding/stage/watch", a.applicant(oh.Watch))
	a.mux.Handle("GET /onboarding/{stage}", a.applicant(oh.Enter))
	a.mux.Handle("GET /onboarding/application", a.applicant(oh.Application))
	a.mux.Handle("POST /onboarding/agreement", a.applicant(oh.Agree))
	a.mux.Handle("GET /onboarding/profile", a.applicant(oh.Profile))
	a.mux.Handle("PUT /onboarding/profile", a.applicant(oh.SaveProfile))
	a.mux.Handle("GET /onboarding/documents", a.applicant(oh.Documents))
	a.mux.Handle("POST /onboarding/documents/{type}", a.applicant(oh.Upload))

	// Admins
	ah := a.admin
	a.mux.Handle("GET /admin/applicants", a.adminOnly(ah.Applicants))
	a.mux.Handle("GET /admin/stats", a.adminOnly(ah.Stats))
	a.mux.Handle("POST /admin/applicants/{id}/status", a.adminOnly(ah.SetStatus))
	a.mux.Handle("POST /admin/applicants/{id}/documents/{type}", a.adminOnly(ah.SetDocumentStatus))
	a.mux.Handle("GET /admin/applicants/{id}/documents/{type}/file", a.adminOnly(ah.DocumentFile))
	a.mux.Handle("POST /admin/export", a.gate.RequirePermission(policy.ResourceApplication, gate.ActionExport)(http.HandlerFunc(ah.Export)))
}

func (a *App) applicant(h http.HandlerFunc) http.Handler {
	return a.gate.RequireApplicant()(h)
}

func (a *App) adminOnly(h http.HandlerFunc) http.Handler {
	return a.gate.RequireAdmin()(h)
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// healthz also checks the database.
func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		a.log.WithError(err).Warn("health check failed")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
