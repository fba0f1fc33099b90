package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	rd "github.com/redis/go-redis/v9"
)

// profileKey names the user profile hash.
func profileKey(userID string) string {
	return fmt.Sprintf("starpay:profile:%s", userID)
}

const balanceField = "balance_minor"

// RedisLedger keeps balances as a field on the user profile hash. HIncrBy
// is atomic on the Redis side, which is the only atomicity this interface
// promises.
type RedisLedger struct {
	rdb *rd.Client
}

func NewRedisLedger(rdb *rd.Client) *RedisLedger {
	return &RedisLedger{rdb: rdb}
}

func (l *RedisLedger) Balance(ctx context.Context, userID string) (int64, error) {
	v, err := l.rdb.HGet(ctx, profileKey(userID), balanceField).Result()
	if errors.Is(err, rd.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (l *RedisLedger) Credit(ctx context.Context, userID string, amountMinor int64) (int64, error) {
	return l.rdb.HIncrBy(ctx, profileKey(userID), balanceField, amountMinor).Result()
}
