package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown rate-limits manual trigger requests per caller and task. The
// window lives in redis so every instance behind the load balancer sees the
// same limit.
type Cooldown struct {
	client *redis.Client
	window time.Duration
}

func NewCooldown(client *redis.Client, window time.Duration) *Cooldown {
	return &Cooldown{client: client, window: window}
}

// TryAcquire opens a cooldown window for (caller, task). It returns false
// when a window is already open. SETNX with expiry makes the check-and-open
// a single atomic step.
func (c *Cooldown) TryAcquire(ctx context.Context, caller, task string) (bool, error) {
	key := fmt.Sprintf("trigger:cooldown:%s:%s", caller, task)
	return c.client.SetNX(ctx, key, "1", c.window).Result()
}
