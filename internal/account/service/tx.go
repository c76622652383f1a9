package service

import (
	"context"
	"sync"
	"time"

	"acctgate/pkg/domain"
	dErrors "acctgate/pkg/domain-errors"
)

// Operations on one account must not interleave, so each account maps to a
// mutex. Locks are sharded by a hash of the address instead of allocated
// per account, which bounds memory and still keeps unrelated accounts off
// each other's lock.
const numLockShards = 128

// defaultOpTimeout caps how long one locked operation may run.
const defaultOpTimeout = 5 * time.Second

type accountLocks struct {
	shards [numLockShards]sync.Mutex
}

// run executes fn while holding the account's shard lock, applying the
// default timeout when the context has no deadline.
func (l *accountLocks) run(ctx context.Context, account domain.Address, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultOpTimeout)
		defer cancel()
	}

	shard := shardOf(account)
	l.shards[shard].Lock()
	defer l.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}
	return fn(ctx)
}

// shardOf hashes the address with FNV-1a.
func shardOf(account domain.Address) int {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for _, b := range account {
		h ^= uint32(b)
		h *= fnvPrime
	}
	return int(h % numLockShards)
}

// inFlight guards the unlocked window of Execute: the account lock is
// released while the external call runs, and this set blocks a second
// execute from entering that window for the same account.
type inFlight struct {
	mu       sync.Mutex
	accounts map[domain.Address]bool
}

func newInFlight() inFlight {
	return inFlight{accounts: make(map[domain.Address]bool)}
}

// enter marks the account as executing; reports false when one is already
// in flight.
func (f *inFlight) enter(account domain.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accounts[account] {
		return false
	}
	f.accounts[account] = true
	return true
}

func (f *inFlight) exit(account domain.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, account)
}
