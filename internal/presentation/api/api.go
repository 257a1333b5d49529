package api

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/watchsync/internal/infrastructure/configs"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/metrics"
	"github.com/hilthontt/watchsync/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/watchsync/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/watchsync/internal/presentation/handler/messages"
	roomHandler "github.com/hilthontt/watchsync/internal/presentation/handler/rooms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 5 * time.Second

type Application struct {
	config          configs.Config
	roomHandler     *roomHandler.Handler
	healthHandler   *healthHandler.Handler
	messagesHandler *messagesHandler.Handler
	wsHandler       http.Handler
	logger          logging.Logger
	ratelimiter     ratelimiter.Limiter
}

func NewApplication(
	config configs.Config,
	roomHandler *roomHandler.Handler,
	healthHandler *healthHandler.Handler,
	messagesHandler *messagesHandler.Handler,
	wsHandler http.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:          config,
		roomHandler:     roomHandler,
		healthHandler:   healthHandler,
		messagesHandler: messagesHandler,
		wsHandler:       wsHandler,
		logger:          logger,
		ratelimiter:     ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if app.config.HTTP.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.enableCors)

	wsPath := app.config.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.With(app.rateLimiterMiddleware).Get(wsPath, app.wsHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(otelhttp.NewMiddleware("watchsync-api"))
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(app.rateLimiterMiddleware)

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", app.roomHandler.ListRoomsHandler)
			r.Get("/{roomId}", app.roomHandler.GetRoomHandler)
			r.Get("/{roomId}/messages", app.messagesHandler.GetMessagesHandler)
			r.Get("/{roomId}/audit", app.roomHandler.GetRoomAuditHandler)
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetReady)
	})

	r.Handle("/metrics", metrics.Handler())
	r.Handle("/debug/vars", expvar.Handler())

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
// Hijacked WebSocket connections are closed by the coordinator, not here.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.HTTP.Addr(),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "shutting down http server", map[logging.ExtraKey]any{
			logging.HostIp: srv.Addr,
		})

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		logging.HostIp: srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		logging.HostIp: srv.Addr,
	})

	return nil
}
