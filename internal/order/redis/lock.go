package redis

import (
	"context"
	"fmt"
	"time"

	"ms-storefront/internal/logger"

	"github.com/go-redis/redis/v8"
)

const paymentLockPrefix = "payment_lock:"

// unlockScript deletes KEYS[1] only while it still holds ARGV[1].
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis guards payment verification so only one request per order can
// mutate it at a time.
type Redis struct {
	Client  *redis.Client
	LockTTL time.Duration
	Logger  *logger.Logger
}

func NewRedis(client *redis.Client, lockTTL time.Duration, log *logger.Logger) *Redis {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Redis{
		Client:  client,
		LockTTL: lockTTL,
		Logger:  log,
	}
}

func paymentLockKey(orderID string) string {
	return paymentLockPrefix + orderID
}

// LockPayment takes the lock for orderID on behalf of token. It returns
// false when another holder owns it.
func (r *Redis) LockPayment(ctx context.Context, orderID, token string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, paymentLockKey(orderID), token, r.LockTTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		r.Logger.Warn("REDIS", fmt.Sprintf("Payment lock for order %s already held", orderID))
	}
	return ok, nil
}

// UnlockPayment releases the lock only if token still owns it. The check
// and the delete run as one script so an expired lock taken over by another
// request is never released by the previous holder.
func (r *Redis) UnlockPayment(ctx context.Context, orderID, token string) error {
	return unlockScript.Run(ctx, r.Client, []string{paymentLockKey(orderID)}, token).Err()
}
