package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/distance"
	"dispatch/internal/domain"
	"dispatch/internal/handler"
	"dispatch/internal/matching"
	"dispatch/internal/offer"
	"dispatch/internal/provider"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/pgxstore"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/route"
	"dispatch/internal/workqueue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	pgxPool, err := app.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to open pgx pool: %v", err)
	}
	defer pgxPool.Close()

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	distProvider, err := app.NewDistanceProvider(cfg.Provider)
	if err != nil {
		log.Fatalf("failed to dial distance provider: %v", err)
	}
	defer distProvider.Close()

	var overflow *workqueue.OverflowPublisher
	if cfg.AMQP.Enabled {
		amqpConn, err := app.NewAMQPConnection(cfg.AMQP)
		if err != nil {
			log.Fatalf("failed to connect to amqp: %v", err)
		}
		defer amqpConn.Close()

		overflow, err = workqueue.NewOverflowPublisher(amqpConn, cfg.AMQP.Queue)
		if err != nil {
			log.Fatalf("failed to declare overflow queue: %v", err)
		}
		defer overflow.Close()
	}
	queue := workqueue.New(redisClient, cfg.Queue.MaxDepth, overflow)

	server := wireServer(db, pgxPool, redisClient, distProvider, queue, nrApp, cfg)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server. It also
// starts the background consumer that drains queue into the matching loop,
// so order creation and assignment rejection can trigger a cycle without
// blocking the request on it.
func wireServer(
	db *sql.DB,
	pgxPool *pgxpool.Pool,
	redisClient *redis.Client,
	distProvider provider.DistanceProvider,
	queue *workqueue.Queue,
	nrApp *newrelic.Application,
	cfg *config.Config,
) *http.Server {
	lockStore := internalRedis.NewLockStore(redisClient)
	geoIndex := internalRedis.NewLocationStore(redisClient)

	orderRepo := postgres.NewOrderRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	assignmentRepo := postgres.NewAssignmentRepository(db)
	distanceCacheRepo := postgres.NewDistanceCacheRepository(db)
	draftRepo := postgres.NewDraftRepository(db)
	observationRepo := pgxstore.NewObservationRepository(pgxPool)

	oracle := distance.New(distanceCacheRepo, distProvider, time.Now, cfg.Provider.PreFilterKM)
	distFunc := route.DistanceFunc(func(ctx context.Context, from, to domain.Point) (float64, float64, error) {
		return oracle.Get(ctx, from, to, domain.ProfileDriving)
	})

	hub := offer.NewHub()
	var publisher *offer.Publisher
	if cfg.Kafka.Enabled {
		publisher = offer.NewPublisher(hub, app.NewKafkaWriter(cfg.Kafka))
	} else {
		publisher = offer.NewPublisher(hub, nil)
	}

	offerService := offer.New(assignmentRepo, orderRepo, driverRepo, assignmentRepo, lockStore, publisher, time.Now)

	var simCfg *matching.SimulationConfig
	if cfg.Matching.SimulationEnabled {
		simCfg = &matching.SimulationConfig{AcceptProbability: cfg.Matching.SimulationAcceptProbability, Seed: 1}
	}
	matchingCfg := matching.Config{
		MaxRounds:         cfg.Matching.MaxRounds,
		ResponseWindow:    cfg.Matching.ResponseWindow,
		RegionMaxRadiusKM: cfg.Matching.RegionMaxRadiusKM,
		RegionMinPoints:   cfg.Matching.RegionMinPoints,
		CandidateCount:    cfg.Matching.CandidateCount,
		Simulation:        simCfg,
	}
	loop := matching.New(orderRepo, driverRepo, assignmentRepo, offerService, distFunc, matchingCfg, time.Now).WithDraftAudit(draftRepo)

	go runMatchingConsumer(context.Background(), queue, loop)

	orderHandler := handler.NewOrderHandler(orderRepo).WithQueue(queue)
	driverHandler := handler.NewDriverHandler(driverRepo, assignmentRepo, orderRepo).
		WithObservations(observationRepo).
		WithGeoIndex(geoIndex)
	matchingHandler := handler.NewMatchingHandler(loop, offerService, assignmentRepo).WithQueue(queue)
	inboxHandler := handler.NewInboxHandler(hub)

	router := app.NewRouter(app.RouterDeps{
		OrderHandler:    orderHandler,
		DriverHandler:   driverHandler,
		MatchingHandler: matchingHandler,
		InboxHandler:    inboxHandler,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// runMatchingConsumer drains the bounded matching queue for the lifetime of
// ctx, running one matching cycle per dequeued job. A dequeue timeout is
// the steady state (nothing queued), not an error.
func runMatchingConsumer(ctx context.Context, queue *workqueue.Queue, loop *matching.Loop) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			log.Printf("workqueue: dequeue: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if _, err := loop.RunCycle(ctx, job.SessionID); err != nil {
			log.Printf("workqueue: matching cycle for session %s (reason=%s): %v", job.SessionID, job.Reason, err)
		}
	}
}
