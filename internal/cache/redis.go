// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/gateway"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultPrefix namespaces every key this package writes.
const DefaultPrefix = "trivia"

// Connect opens a Redis client and verifies it with a ping.
func Connect(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Gateway is a read-through snapshot cache in front of another gateway.
// Player and round listings are served from Redis for at most ttl; writes go
// straight to the wrapped gateway and drop the affected keys. Redis failures
// fall back to the wrapped gateway.
type Gateway struct {
	next   gateway.Gateway
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	log    logrus.FieldLogger
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway wraps next. An empty prefix uses DefaultPrefix.
func NewGateway(next gateway.Gateway, rdb redis.Cmdable, ttl time.Duration, prefix string, logger logrus.FieldLogger) *Gateway {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Gateway{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
		log:    logger.WithField("component", "redis_cache"),
	}
}

func (g *Gateway) playersKey() string            { return g.prefix + ":players" }
func (g *Gateway) playerKey(id uuid.UUID) string { return g.prefix + ":player:" + id.String() }
func (g *Gateway) roundsKey() string             { return g.prefix + ":rounds" }
func (g *Gateway) roundKey(start int64) string   { return fmt.Sprintf("%s:round:%d", g.prefix, start) }

func (g *Gateway) AddPlayer(ctx context.Context, id uuid.UUID, language string) error {
	if err := g.next.AddPlayer(ctx, id, language); err != nil {
		return err
	}
	g.invalidate(ctx, g.playersKey(), g.playerKey(id))
	return nil
}

func (g *Gateway) GetAllPlayers(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	err := g.readThrough(ctx, g.playersKey(), &players, g.ttl, func() (any, error) {
		return g.next.GetAllPlayers(ctx)
	})
	return players, err
}

func (g *Gateway) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p *models.Player
	err := g.readThrough(ctx, g.playerKey(id), &p, g.ttl, func() (any, error) {
		return g.next.GetPlayer(ctx, id)
	})
	return p, err
}

func (g *Gateway) CreateRound(ctx context.Context, language string) error {
	if err := g.next.CreateRound(ctx, language); err != nil {
		return err
	}
	g.invalidate(ctx, g.roundsKey())
	return nil
}

func (g *Gateway) GetAllRounds(ctx context.Context) ([]models.Round, error) {
	var rounds []models.Round
	err := g.readThrough(ctx, g.roundsKey(), &rounds, g.ttl, func() (any, error) {
		return g.next.GetAllRounds(ctx)
	})
	return rounds, err
}

// GetRound caches found rounds without expiry since a recorded round never
// changes. Misses are not cached.
func (g *Gateway) GetRound(ctx context.Context, startTime int64) (*models.Round, error) {
	key := g.roundKey(startTime)
	var r *models.Round
	if g.get(ctx, key, &r) {
		return r, nil
	}
	r, err := g.next.GetRound(ctx, startTime)
	if err != nil || r == nil {
		return r, err
	}
	g.set(ctx, key, r, 0)
	return r, nil
}

// readThrough decodes key into dst, or calls load, stores its result and decodes that.
func (g *Gateway) readThrough(ctx context.Context, key string, dst any, ttl time.Duration, load func() (any, error)) error {
	if g.get(ctx, key, dst) {
		return nil
	}
	v, err := load()
	if err != nil {
		return err
	}
	data := g.set(ctx, key, v, ttl)
	if data == nil {
		return fmt.Errorf("encode %s", key)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (g *Gateway) get(ctx context.Context, key string, dst any) bool {
	data, err := g.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.log.WithError(err).WithField("key", key).Warn("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		g.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		return false
	}
	return true
}

// set stores v under key and returns its encoding.
func (g *Gateway) set(ctx context.Context, key string, v any, ttl time.Duration) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		g.log.WithError(err).WithField("key", key).Warn("failed to encode cache entry")
		return nil
	}
	if err := g.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		g.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return data
}

func (g *Gateway) invalidate(ctx context.Context, keys ...string) {
	if err := g.rdb.Del(ctx, keys...).Err(); err != nil {
		g.log.WithError(err).WithField("keys", keys).Warn("cache invalidation failed")
	}
}
