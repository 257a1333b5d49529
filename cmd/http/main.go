package main

import (
	"context"
	"errors"
	"expvar"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/configs"
	"github.com/hilthontt/watchsync/internal/infrastructure/events"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/messaging"
	"github.com/hilthontt/watchsync/internal/infrastructure/metrics"
	"github.com/hilthontt/watchsync/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/watchsync/internal/infrastructure/repository"
	"github.com/hilthontt/watchsync/internal/infrastructure/tracing"
	"github.com/hilthontt/watchsync/internal/infrastructure/ws"
	"github.com/hilthontt/watchsync/internal/persistence/db"
	persistence "github.com/hilthontt/watchsync/internal/persistence/repository"
	"github.com/hilthontt/watchsync/internal/presentation/api"
	"github.com/hilthontt/watchsync/internal/presentation/handler/health"
	"github.com/hilthontt/watchsync/internal/presentation/handler/messages"
	"github.com/hilthontt/watchsync/internal/presentation/handler/rooms"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	serviceName     = "watchsync"
	eventBuffer     = 1024
	shutdownTimeout = 10 * time.Second
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Backend,
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName: serviceName,
		Environment: cfg.Tracing.Environment,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
	}, cfg.Tracing.Enabled)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize the tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	limiter := newRateLimiter(ctx, cfg, logger)
	m := metrics.New(prometheus.DefaultRegisterer)

	roomTable := repository.NewRoomTable(cfg.Room.MaxRooms)
	chatHistory := repository.NewChatHistory(cfg.Chat.HistorySize)

	var (
		auditRepository domain.RoomAuditRepository
		mongoClient     *mongo.Client
		rabbitmq        *messaging.RabbitMQ
		sinks           []events.Sink
	)

	if cfg.MongoDB.Enabled {
		mongoCfg := db.NewMongoConfig(cfg.MongoDB)
		mongoClient, err = db.NewMongoClient(ctx, mongoCfg)
		if err != nil {
			logger.Fatal(logging.MongoDB, logging.Startup, "failed to connect to mongodb", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}

		auditRepository = persistence.NewRoomAuditLogRepository(db.GetDatabase(mongoClient, mongoCfg))
		if err := auditRepository.EnsureIndexes(ctx); err != nil {
			logger.Warn(logging.MongoDB, logging.Startup, "failed to ensure audit indexes", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}

	if cfg.RabbitMQ.Enabled {
		rabbitmq, err = messaging.NewRabbitMQ(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to connect to rabbitmq", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		sinks = append(sinks, events.NewRoomPublisher(rabbitmq))
	}

	// With a broker the audit trail goes through the queue; without one the
	// dispatcher writes to mongo itself.
	consumerDone := make(chan struct{})
	switch {
	case rabbitmq != nil && auditRepository != nil:
		consumer := events.NewRoomConsumer(rabbitmq, auditRepository, logger)
		go func() {
			defer close(consumerDone)
			if err := consumer.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(logging.RabbitMQ, logging.Audit, "room consumer stopped", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}
		}()
	case auditRepository != nil:
		sinks = append(sinks, events.NewAuditSink(auditRepository))
		close(consumerDone)
	default:
		close(consumerDone)
	}

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()

	dispatcher := events.NewDispatcher(eventBuffer, logger, m, sinks...)
	go dispatcher.Run(dispatcherCtx)

	core := ws.NewCore(ws.Options{
		MaxRooms:          cfg.Room.MaxRooms,
		MaxMembers:        cfg.Room.MaxMembers,
		EnforceStrictSync: cfg.Room.EnforceStrictSync,
		ChatMaxLength:     cfg.Chat.MaxLength,
	}, roomTable, chatHistory, dispatcher, logger, m)
	go core.Run(ctx)

	wsServer := ws.NewServer(core, ws.ClientOptions{
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBuffer:     cfg.WebSocket.SendBuffer,
	}, cfg.HTTP.AllowedOrigins, limiter, logger)

	app := api.NewApplication(
		*cfg,
		rooms.NewHandler(core, auditRepository, logger),
		health.NewHandler(core),
		messages.NewHandler(chatHistory, logger),
		wsServer,
		logger,
		limiter,
	)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	if err := app.Run(ctx, app.Mount()); err != nil {
		logger.Error(logging.General, logging.Shutdown, "http server failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		stop()
	}

	// The core closes every client when ctx is done; events it emitted on the
	// way out are flushed by the dispatcher before the sinks go away.
	<-core.Done()
	stopDispatcher()
	<-dispatcher.Done()
	<-consumerDone

	if rabbitmq != nil {
		rabbitmq.Close()
	}
	if mongoClient != nil {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := db.DisconnectMongo(disconnectCtx, mongoClient); err != nil {
			logger.Warn(logging.MongoDB, logging.Shutdown, "failed to disconnect from mongodb", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}

	logger.Info(logging.General, logging.Shutdown, "shutdown complete", nil)
}

func newRateLimiter(ctx context.Context, cfg *configs.Config, logger logging.Logger) ratelimiter.Limiter {
	var cache ratelimiter.GetterSetter
	switch cfg.RateLimiter.Backend {
	case "redis":
		redisCache, err := ratelimiter.NewRedis(ctx, cfg.RateLimiter.RedisAddr, cfg.RateLimiter.RedisDB)
		if err != nil {
			logger.Fatal(logging.Redis, logging.Startup, "failed to connect to redis", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		cache = redisCache
	default:
		cache = ratelimiter.NewInMemory()
	}

	return ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		Cache:            cache,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
}
