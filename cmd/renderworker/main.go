// The render worker processes exactly one render job and exits. The scheduler
// spawns one worker per claimed job; exit code 0 means the job reached
// SUCCESS, anything else leaves the verdict on the job row.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"driftcast/internal/config"
	"driftcast/internal/encoder"
	"driftcast/internal/pipeline"
	"driftcast/internal/pkg/logger"
	"driftcast/internal/storage"
	"driftcast/internal/store"
)

func main() {
	jobID := flag.String("job", "", "render job ID to process")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Server.LogLevel,
		Format:      "json",
		ServiceName: "driftcast-renderworker",
	})

	if *jobID == "" {
		log.Error("missing -job flag")
		os.Exit(2)
	}
	log = log.WithJobID(*jobID)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	defer pool.Close()

	remote, err := storage.NewRemoteStorage(ctx, cfg.Drive)
	if err != nil {
		log.LogFatal("failed to initialize remote storage", err)
	}

	enc, err := encoder.New(log)
	if err != nil {
		log.LogFatal("failed to locate ffmpeg", err)
	}

	st := store.New(pool)
	pipe := pipeline.New(pipeline.Deps{
		Jobs:           st.RenderJobs,
		Media:          st.Media,
		Storage:        remote,
		Enc:            enc,
		ScratchRoot:    cfg.Render.ScratchRoot,
		UploadFolderID: cfg.Drive.OutputFolderID,
		Log:            log,
	})

	job, err := st.RenderJobs.Get(ctx, *jobID)
	if err != nil {
		log.LogFatal("failed to load render job", err)
	}

	if err := pipe.Run(ctx, job); err != nil {
		// The pipeline already recorded the failure on the job row.
		os.Exit(1)
	}
}
