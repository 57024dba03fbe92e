// README: Redis-queue payment hand-off implementation.
package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingChargesKey = "payment:pending"

type queuedCharge struct {
	Charge
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RedisNotifier pushes charges onto a Redis list the payment collaborator
// drains. Fire and forget from the lifecycle's point of view.
type RedisNotifier struct {
	redis *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{redis: client}
}

func (n *RedisNotifier) InitiateCharge(ctx context.Context, c Charge) error {
	payload, err := json.Marshal(queuedCharge{Charge: c, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return n.redis.LPush(ctx, pendingChargesKey, payload).Err()
}
