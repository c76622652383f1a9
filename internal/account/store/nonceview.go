package store

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"acctgate/internal/platform/redis"
	"acctgate/pkg/domain"
)

// RedisNonceView mirrors each account's replay counter into redis after
// every accepted signed action. Relays read it to pick the next nonce
// without hitting the account store; the authoritative counter stays inside
// the aggregate and is checked atomically with the action.
type RedisNonceView struct {
	client *redis.Client
}

func NewRedisNonceView(client *redis.Client) *RedisNonceView {
	return &RedisNonceView{client: client}
}

func nonceKey(account domain.Address) string {
	return "acctgate:nonce:" + account.String()
}

// Publish records the account's current nonce. Best-effort: the service
// logs failures and continues, since the view is advisory.
func (v *RedisNonceView) Publish(ctx context.Context, account domain.Address, nonce uint64) error {
	if err := v.client.Set(ctx, nonceKey(account), nonce, 0).Err(); err != nil {
		return fmt.Errorf("publish nonce: %w", err)
	}
	return nil
}

// Current returns the last published nonce, or 0 when none was published.
func (v *RedisNonceView) Current(ctx context.Context, account domain.Address) (uint64, error) {
	n, err := v.client.Get(ctx, nonceKey(account)).Uint64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read nonce: %w", err)
	}
	return n, nil
}
