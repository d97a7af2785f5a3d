package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-bank/meridian-web/internal/admin"
	"github.com/meridian-bank/meridian-web/internal/apierror"
	"github.com/meridian-bank/meridian-web/internal/auth"
	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/banking"
	"github.com/meridian-bank/meridian-web/internal/boundary"
	"github.com/meridian-bank/meridian-web/internal/mappings"
	"github.com/meridian-bank/meridian-web/internal/observability"
	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/reports"
	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/internal/view"
)

const sessionCookieName = "meridian_session"

// App is the assembled web front end.
type App struct {
	Handler http.Handler
	Metrics *observability.Metrics
	Errors  *apierror.Facade
	// Feed is nil when no service token is configured.
	Feed *admin.MetricsFeed
}

// Build wires every component against the banking API client.
func Build(cfg *Config, logger *slog.Logger, redisClient *redis.Client, api *backend.Client) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	templates, err := view.NewEngine()
	if err != nil {
		return nil, err
	}
	metrics := observability.NewMetrics()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	facade := apierror.New(apierror.FlashNotifier{}, apierror.Options{
		RedirectOnUnauthenticated: cfg.RedirectOnUnauthenticated,
		Logger:                    logger,
		Recorder:                  metrics,
	})
	// A rejected token is useless; drop it so the guard sends the user to login.
	facade.OnError(apierror.StatusKey(http.StatusUnauthorized), func(ctx context.Context, _ apierror.Error) {
		if sess := shared.SessionFromContext(ctx); sess != nil {
			auth.NewStore(sess).Clear()
		}
	})

	guard := rbac.Middleware{Sessions: auth.Resolver, Logger: logger, Recorder: metrics}
	pages := view.Pages{CSRF: csrfManager, Viewer: auth.ViewerFor}

	var feed *admin.MetricsFeed
	if cfg.BackendServiceToken != "" {
		cache := admin.NewSnapshotCache(redisClient, cfg.MetricsCacheTTL)
		feed = admin.NewMetricsFeed(api, cfg.BackendServiceToken, cfg.MetricsPollInterval, cache, logger, metrics)
	}

	router := NewRouter(RouterParams{
		Logger:          logger,
		Config:          cfg,
		Templates:       templates,
		Pages:           pages,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		RBACMiddleware:  guard,
		AuthHandler:     auth.NewHandler(logger, auth.NewService(api), templates, sessionManager, csrfManager, facade),
		BankingHandler:  banking.NewHandler(logger, api, templates, pages, facade, guard),
		AdminHandler:    admin.NewHandler(logger, api, feed, templates, pages, facade, guard),
		ReportsHandler:  reports.NewHandler(logger, api, templates, pages, facade, guard),
		MappingsHandler: mappings.NewHandler(logger, api, templates, pages, facade, guard),
		BoundaryHandler: boundary.NewHandler(logger, templates, pages, cfg.BoundaryMaxRetries, metrics),
		Metrics:         metrics,
	})
	return &App{Handler: router, Metrics: metrics, Errors: facade, Feed: feed}, nil
}
