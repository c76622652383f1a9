//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"acctgate/internal/platform/config"
	"acctgate/internal/platform/redis"
	"acctgate/pkg/domain"
	"acctgate/pkg/testutil/containers"
)

type RedisNonceViewSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	view  *RedisNonceView
}

func TestRedisNonceViewSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisNonceViewSuite))
}

func (s *RedisNonceViewSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())

	client, err := redis.New(config.RedisConfig{URL: s.redis.Addr})
	s.Require().NoError(err)
	s.Require().NotNil(client)
	s.view = NewRedisNonceView(client)
}

func (s *RedisNonceViewSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisNonceViewSuite) TestPublishCurrentRoundTrip() {
	ctx := context.Background()
	var account domain.Address
	account[0] = 0xaa

	// Nothing published yet reads as counter zero.
	nonce, err := s.view.Current(ctx, account)
	s.Require().NoError(err)
	s.Equal(uint64(0), nonce)

	s.Require().NoError(s.view.Publish(ctx, account, 1))
	nonce, err = s.view.Current(ctx, account)
	s.Require().NoError(err)
	s.Equal(uint64(1), nonce)

	// Re-publishing overwrites; the view always reflects the latest counter.
	s.Require().NoError(s.view.Publish(ctx, account, 7))
	nonce, err = s.view.Current(ctx, account)
	s.Require().NoError(err)
	s.Equal(uint64(7), nonce)
}

func (s *RedisNonceViewSuite) TestAccountsAreIsolated() {
	ctx := context.Background()
	var a, b domain.Address
	a[0] = 1
	b[0] = 2

	s.Require().NoError(s.view.Publish(ctx, a, 5))

	nonce, err := s.view.Current(ctx, b)
	s.Require().NoError(err)
	s.Equal(uint64(0), nonce)
}
