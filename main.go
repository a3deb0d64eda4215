package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/infrastructure/cache"
	"newshub/infrastructure/clients/instagram"
	"newshub/infrastructure/clients/linkedin"
	"newshub/infrastructure/clients/threads"
	"newshub/infrastructure/clients/twitter"
	"newshub/infrastructure/configuration"
	"newshub/infrastructure/googlesheet"
	"newshub/infrastructure/logger"
	"newshub/infrastructure/persistence"
	"newshub/infrastructure/pubsub"
	"newshub/infrastructure/realtime"
	"newshub/infrastructure/servicebus"
	httpHandler "newshub/interfaces/http"
	"newshub/server"
	"newshub/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App

	psqlDb, mssqlDb, err := InitiateDatabase()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
	}

	gormDb, err := persistence.NewMySQLGorm()
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MySQL not available - publishing disabled until the post store is reachable")
		gormDb = nil
	}

	mongoDb, err := persistence.NewMongoDb(
		configuration.C.Database.Mongo.Host,
		configuration.C.Database.Mongo.Port,
		configuration.C.Database.Mongo.User,
		configuration.C.Database.Mongo.Password,
		configuration.C.Database.Mongo.Name,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - continuing without outcome archive")
		mongoDb = nil
	} else {
		if err := mongoDb.Ping(ctx, nil); err != nil {
			logger.GetLogger().WithField("error", err).Warn("MongoDB ping failed - continuing without outcome archive")
			mongoDb = nil
		} else {
			logger.GetLogger().Info("MongoDB connected successfully")
		}
	}

	pubSubClient, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("PubSub not available - outcome events disabled")
		pubSubClient = nil
	}

	azServiceBusClient, err := servicebus.NewServiceBus(ctx, configuration.C.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - failure alerts disabled")
		azServiceBusClient = nil
	}

	var sheet googlesheet.IGoogleSheet
	if configuration.C.GoogleSheet.SpreadsheetId != "" {
		sheet, err = googlesheet.NewGoogleSheet()
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Google Sheets not available - sheet export disabled")
			sheet = nil
		}
	}

	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - using database rate limiting and in-process locking")
		redisClient = nil
	} else {
		logger.GetLogger().Info("Redis client initialized successfully.")
	}

	// Repository wiring: use MSSQL in production, otherwise PostgreSQL.
	var userRepository repository.IUser
	var historyRepository repository.IPublishHistory
	var connRepository repository.IConnection
	if psqlDb == nil {
		userRepository = persistence.NewUserRepositoryMSSQL(mssqlDb)
		historyRepository = persistence.NewPublishHistoryRepositoryMSSQL(mssqlDb)
		connRepository = persistence.NewConnectionRepositoryMSSQL(mssqlDb)
		if err := persistence.EnsurePublishSchemaMSSQL(mssqlDb); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring publish schema")
		}
	} else {
		userRepository = persistence.NewUserRepository(psqlDb)
		historyRepository = persistence.NewPublishHistoryRepository(psqlDb)
		connRepository = persistence.NewConnectionRepository(psqlDb)
		if err := persistence.EnsurePublishSchema(psqlDb); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring publish schema")
		}
	}

	pubCfg := configuration.C.Publishing
	window := time.Duration(pubCfg.RateLimitWindowSec) * time.Second

	var rateLimiter repository.IRateLimiter
	var publishLock repository.IPublishLock
	if redisClient != nil {
		rateLimiter = cache.NewRateLimiter(redisClient, pubCfg.RateLimitMax, window)
		publishLock = cache.NewPublishLock(redisClient)
	} else {
		if psqlDb != nil {
			rateLimiter = persistence.NewRateLimitRepository(psqlDb, pubCfg.RateLimitMax, pubCfg.RateLimitWindowSec)
		} else {
			rateLimiter = persistence.NewRateLimitRepositoryMSSQL(mssqlDb, pubCfg.RateLimitMax, pubCfg.RateLimitWindowSec)
		}
		publishLock = cache.NewMemoryLock()
	}

	var postRepository repository.IPost
	if gormDb != nil {
		postRepository = persistence.NewPostRepository(gormDb)
	}

	var archive repository.IPublishArchive
	if mongoDb != nil {
		archive = persistence.NewPublishArchiveRepository(mongoDb, configuration.C.Database.Mongo.Name)
	}

	var events pubsub.IPublishEvents
	if pubSubClient != nil {
		events = pubsub.NewPublishEvents(pubSubClient, configuration.C.Pubsub.OutcomeTopic)
	}
	var alerts servicebus.IAlertSender
	if azServiceBusClient != nil {
		alerts = servicebus.NewAlertSender(azServiceBusClient, configuration.C.ServiceBus.AlertQueue)
	}

	publishers := map[model.Platform]repository.IPlatformPublisher{
		model.PlatformTwitter:   twitter.NewClient(),
		model.PlatformLinkedIn:  linkedin.NewClient(),
		model.PlatformInstagram: instagram.NewClient(),
		model.PlatformThreads:   threads.NewClient(),
	}

	connectionManager := usecase.NewConnectionManager(connRepository)
	publishHub := realtime.NewPublishHub()

	publishUsecase := usecase.NewPublishUsecase(
		historyRepository,
		rateLimiter,
		publishLock,
		postRepository,
		connectionManager,
		publishers,
		archive,
		publishHub,
		events,
		alerts,
	)
	userUsecase := usecase.NewUserUsecase(userRepository)

	userHandler := httpHandler.NewUserHandler(userUsecase)
	healthHandler := httpHandler.NewHealthHandler()
	publishHandler := httpHandler.NewPublishHandler(publishUsecase, sheet)
	connectionHandler := httpHandler.NewConnectionHandler(connRepository, connectionManager, publishers)

	router := server.InitiateRouter(userHandler, healthHandler, publishHandler, connectionHandler, userRepository, publishHub)

	// Background retry processor (simple ticker loop)
	retryInterval := time.Duration(pubCfg.RetryIntervalSec) * time.Second
	if retryInterval <= 0 {
		retryInterval = 30 * time.Second
	}
	g.Go(func() error {
		ticker := time.NewTicker(retryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				procCtx, cancelProc := context.WithTimeout(ctx, 2*time.Minute)
				if err := publishUsecase.ProcessDueRetries(procCtx, pubCfg.RetryBatchSize); err != nil {
					logger.GetLogger().WithField("error", err).Error("Error while processing due retries")
				}
				cancelProc()
			}
		}
	})

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			} else {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
		} else {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateDatabase returns (psqlDB, mssqlDB). In production, psqlDB is nil and
// MSSQL is the primary store; locally PostgreSQL is the primary store.
func InitiateDatabase() (*sql.DB, *sql.DB, error) {
	env := os.Getenv("ENV")
	if v := os.Getenv("DB_VENDOR"); v == "mssql" || env == "production" || env == "prod" {
		mssql, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL")
			return nil, nil, err
		}
		return nil, mssql, nil
	}

	postgres, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to the local database")
		return nil, nil, err
	}
	return postgres, nil, nil
}
