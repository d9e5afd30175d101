package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"veriledger/pkg/domain"
	"veriledger/pkg/platform/sentinel"
)

const bindingKeyPrefix = "veriledger:binding:"

// RedisStore shares the binding cache across engine replicas. Values are
// "<registrarKey>:<identity>"; bindings carry no TTL because staleness is
// detected against the registrar, not by age.
type RedisStore struct {
	client *goredis.Client
}

func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, account domain.AccountAddr) (Binding, error) {
	val, err := s.client.Get(ctx, bindingKeyPrefix+account.String()).Result()
	if errors.Is(err, goredis.Nil) {
		return Binding{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Binding{}, fmt.Errorf("get binding: %w", err)
	}
	key, identity, ok := strings.Cut(val, ":")
	if !ok {
		return Binding{}, fmt.Errorf("malformed binding value %q", val)
	}
	k, err := strconv.ParseUint(key, 10, 8)
	if err != nil {
		return Binding{}, fmt.Errorf("malformed registrar key in binding: %w", err)
	}
	return Binding{Identity: domain.InvestorID(identity), RegistrarKey: domain.RegistrarKey(k)}, nil
}

func (s *RedisStore) Put(ctx context.Context, account domain.AccountAddr, b Binding) error {
	val := strconv.Itoa(int(b.RegistrarKey)) + ":" + b.Identity.String()
	if err := s.client.Set(ctx, bindingKeyPrefix+account.String(), val, 0).Err(); err != nil {
		return fmt.Errorf("put binding: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, account domain.AccountAddr) error {
	if err := s.client.Del(ctx, bindingKeyPrefix+account.String()).Err(); err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	return nil
}
