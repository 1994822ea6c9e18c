// Package dispatch claims due jobs and hands them to their processors. The
// claim is a conditional status update in Postgres, so any number of
// schedulers can tick concurrently and each job still runs at most once.
package dispatch

import (
	"context"

	"driftcast/internal/pkg/logger"
)

// DefaultPerRequesterLimit caps how many of one requester's jobs may run at
// the same time.
const DefaultPerRequesterLimit = 5

// JobQueue is the claimable-job surface shared by the render and upload job
// repositories.
type JobQueue interface {
	RequestersWithDuePending(ctx context.Context) ([]string, error)
	CountRunning(ctx context.Context, requestedBy string) (int, error)
	ListDuePending(ctx context.Context, requestedBy string, limit int) ([]string, error)
	ClaimPending(ctx context.Context, ids []string) ([]string, error)
	HasDuePending(ctx context.Context) (bool, error)
}

// Claimer enforces the per-requester concurrency ceiling and wins jobs
// through the queue's conditional claim.
type Claimer struct {
	queue JobQueue
	limit int
	log   *logger.Logger
}

func NewClaimer(queue JobQueue, limit int, log *logger.Logger) *Claimer {
	if limit <= 0 {
		limit = DefaultPerRequesterLimit
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Claimer{queue: queue, limit: limit, log: log.WithComponent("claimer")}
}

// ClaimDue walks every requester with due work and claims up to their free
// slots, oldest job first. A requester at the ceiling is skipped without even
// listing candidates. One requester's query failure does not block the rest.
func (c *Claimer) ClaimDue(ctx context.Context) ([]string, error) {
	requesters, err := c.queue.RequestersWithDuePending(ctx)
	if err != nil {
		return nil, err
	}

	var claimed []string
	for _, requester := range requesters {
		log := c.log.FromContext(ctx).WithFields(map[string]any{"requested_by": requester})

		running, err := c.queue.CountRunning(ctx, requester)
		if err != nil {
			log.Error("failed to count running jobs", "error", err.Error())
			continue
		}

		free := c.limit - running
		if free <= 0 {
			log.Debug("requester at concurrency ceiling", "running", running)
			continue
		}

		candidates, err := c.queue.ListDuePending(ctx, requester, free)
		if err != nil {
			log.Error("failed to list due jobs", "error", err.Error())
			continue
		}

		won, err := c.queue.ClaimPending(ctx, candidates)
		if err != nil {
			log.Error("claim update failed", "error", err.Error())
			continue
		}
		if len(won) > 0 {
			log.Info("claimed jobs", "count", len(won))
		}
		claimed = append(claimed, won...)
	}
	return claimed, nil
}
