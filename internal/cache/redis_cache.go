package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/freight-matching/internal/models"
)

// Redis stores candidates as JSON under candidate:<id>, with per-route and
// per-load index sets used for eviction. All keys share the TTL.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// NewRedisFromAddr dials a single redis node.
func NewRedisFromAddr(addr, password string, ttl time.Duration) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return NewRedis(c, ttl)
}

func candidateKey(id string) string { return "candidate:" + id }

func routeIndexKey(routeID string) string { return "candidate:route:" + routeID }

func loadIndexKey(source models.LoadSource, loadID string) string {
	return fmt.Sprintf("candidate:load:%s:%s", source, loadID)
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Put(ctx context.Context, cands []models.Candidate) error {
	if len(cands) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, c := range cands {
		b, err := json.Marshal(c)
		if err != nil {
			return err
		}
		rk, lk := routeIndexKey(c.Route.ID), loadIndexKey(c.Load.Source, c.Load.ID)
		pipe.Set(ctx, candidateKey(c.ID), b, r.ttl)
		pipe.SAdd(ctx, rk, c.ID)
		pipe.Expire(ctx, rk, r.ttl)
		pipe.SAdd(ctx, lk, c.ID)
		pipe.Expire(ctx, lk, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Get(ctx context.Context, id string) (models.Candidate, error) {
	b, err := r.client.Get(ctx, candidateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Candidate{}, ErrMiss
	}
	if err != nil {
		return models.Candidate{}, err
	}
	var c models.Candidate
	if err := json.Unmarshal(b, &c); err != nil {
		return models.Candidate{}, fmt.Errorf("decode candidate %s: %w", id, err)
	}
	return c, nil
}

func (r *Redis) EvictRoute(ctx context.Context, routeID, keepID string) error {
	return r.evictIndex(ctx, routeIndexKey(routeID), keepID)
}

func (r *Redis) EvictLoad(ctx context.Context, source models.LoadSource, loadID, keepID string) error {
	return r.evictIndex(ctx, loadIndexKey(source, loadID), keepID)
}

// evictIndex deletes the candidates listed in index, except keepID, and
// removes them from the index.
func (r *Redis) evictIndex(ctx context.Context, index, keepID string) error {
	ids, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids))
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		if id == keepID {
			continue
		}
		keys = append(keys, candidateKey(id))
		members = append(members, id)
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, index, members...)
	_, err = pipe.Exec(ctx)
	return err
}
