package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*Redis)(nil)

const scanBatch = 1000

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Redis implements Store on a redis server. Indexes are native sorted sets.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis connects to redis and verifies the connection with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable("ping "+opts.Addr, err)
	}
	return NewRedisFromClient(client), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, unavailable("get "+key, err)
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return unavailable("set "+key, err)
	}
	return nil
}

// KeysWithPrefix walks the keyspace with SCAN so large caches do not block the server.
func (r *Redis) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, escapeGlob(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan "+prefix, err)
	}
	return keys, nil
}

func (r *Redis) ZAdd(ctx context.Context, index, member string, score float64) error {
	if err := r.client.ZAdd(ctx, index, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return unavailable("zadd "+index, err)
	}
	return nil
}

func (r *Redis) ZRangeLast(ctx context.Context, index string, n int) ([]ScoredMember, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := r.client.ZRangeWithScores(ctx, index, int64(-n), -1).Result()
	if err != nil {
		return nil, unavailable("zrange "+index, err)
	}
	out := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, ScoredMember{Member: member, Score: z.Score})
	}
	return out, nil
}

func (r *Redis) ZRangeAfter(ctx context.Context, index string, score float64) ([]string, error) {
	members, err := r.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{
		Min: "(" + strconv.FormatFloat(score, 'f', -1, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, unavailable("zrangebyscore "+index, err)
	}
	return members, nil
}

// FlushAll clears the selected database only.
func (r *Redis) FlushAll(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return unavailable("flushdb", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
