package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"driftcast/internal/config"
	"driftcast/internal/dispatch"
	"driftcast/internal/drivesync"
	"driftcast/internal/encoder"
	"driftcast/internal/httpapi"
	"driftcast/internal/pipeline"
	"driftcast/internal/pkg/logger"
	"driftcast/internal/pkg/shutdown"
	"driftcast/internal/scheduler"
	"driftcast/internal/storage"
	"driftcast/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Server.LogLevel,
		Format:      "json",
		ServiceName: "driftcast",
	})

	log.Info("starting driftcast",
		"version", "0.1.0",
		"instance", cfg.Scheduler.InstanceID,
	)

	ctx := context.Background()

	// Initialize shutdown manager
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Connect to PostgreSQL
	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})
	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	log.Info("PostgreSQL connected")

	// Connect to Redis
	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	// Initialize remote storage
	remote, err := storage.NewRemoteStorage(ctx, cfg.Drive)
	if err != nil {
		log.LogFatal("failed to initialize remote storage", err)
	}
	log.Info("remote storage initialized", "provider", remote.Provider())

	st := store.New(pool)

	// Render execution: isolated worker process by default, in-process when
	// debugging locally.
	var runner dispatch.RenderRunner
	if cfg.Render.Isolated {
		runner = pipeline.NewIsolator(cfg.Render.WorkerBinary, cfg.Render.WorkerMemLimitMB, log)
	} else {
		enc, err := encoder.New(log)
		if err != nil {
			log.LogFatal("failed to locate ffmpeg", err)
		}
		pipe := pipeline.New(pipeline.Deps{
			Jobs:           st.RenderJobs,
			Media:          st.Media,
			Storage:        remote,
			Enc:            enc,
			ScratchRoot:    cfg.Render.ScratchRoot,
			UploadFolderID: cfg.Drive.OutputFolderID,
			Log:            log,
		})
		runner = dispatch.NewInProcessRunner(st.RenderJobs, pipe)
	}

	renders := dispatch.NewRenderDispatcher(
		dispatch.NewClaimer(st.RenderJobs, cfg.Render.PerUserLimit, log), runner, st.RenderJobs, log)

	syncer := drivesync.New(remote, st.Media, cfg.Drive.RootFolderID, log)

	tasks := []scheduler.PeriodicTask{
		{Name: "sync", Interval: cfg.Scheduler.SyncInterval, Task: syncer},
		{Name: "renders", Interval: cfg.Scheduler.RenderInterval, Task: renders},
	}

	// YouTube publishing is optional; without it upload jobs stay pending.
	var uploads *dispatch.UploadDispatcher
	publisher, err := storage.NewPublisher(ctx, cfg.YouTube)
	if err != nil {
		log.LogFatal("failed to initialize publisher", err)
	}
	if publisher != nil {
		uploads = dispatch.NewUploadDispatcher(
			dispatch.NewClaimer(st.UploadJobs, cfg.Render.PerUserLimit, log),
			st.UploadJobs, remote, publisher, log)
		tasks = append(tasks, scheduler.PeriodicTask{
			Name: "uploads", Interval: cfg.Scheduler.UploadInterval, Task: uploads,
		})
	} else {
		log.Info("publishing disabled, upload jobs will not be dispatched")
	}

	// Try to take scheduler leadership; losing just means another instance
	// leads and this one only serves HTTP.
	sched := scheduler.New(scheduler.Config{
		LeaseName: cfg.Scheduler.LeaseName,
		HolderID:  cfg.Scheduler.InstanceID,
		LeaseTTL:  cfg.Scheduler.LeaseTTL,
	}, st.Leases, tasks, log)

	if _, err := sched.Start(ctx); err != nil {
		log.LogError(ctx, "scheduler election failed", err)
	}
	shutdownMgr.Register("scheduler", func(ctx context.Context) error {
		sched.Stop("shutdown")
		return nil
	})

	trigger := dispatch.NewTrigger(dispatch.TriggerDeps{
		Cooldown:     dispatch.NewCooldown(rdb, cfg.Trigger.Cooldown),
		Renders:      renders,
		Uploads:      uploads,
		RenderQueue:  st.RenderJobs,
		UploadQueue:  st.UploadJobs,
		Syncer:       syncer,
		SyncInterval: cfg.Scheduler.SyncInterval,
		Log:          log,
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Pool:      pool,
		RDB:       rdb,
		Storage:   remote,
		Store:     st,
		Trigger:   trigger,
		LeaseName: cfg.Scheduler.LeaseName,
		Log:       log,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", cfg.Server.Port,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	// Wait for shutdown signal
	shutdownMgr.Wait()
}
