package handlers

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"driftcast/internal/dispatch"
	"driftcast/internal/pkg/logger"
	"driftcast/internal/ports"
	"driftcast/internal/store"
)

type Deps struct {
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	Storage   ports.RemoteStorage
	Store     *store.Store
	Trigger   *dispatch.Trigger
	LeaseName string
	Log       *logger.Logger
}

type Handler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	storage   ports.RemoteStorage
	store     *store.Store
	trigger   *dispatch.Trigger
	leaseName string
	log       *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		pool:      d.Pool,
		rdb:       d.RDB,
		storage:   d.Storage,
		store:     d.Store,
		trigger:   d.Trigger,
		leaseName: d.LeaseName,
		log:       log.WithComponent("http"),
	}
}
