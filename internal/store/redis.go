package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JimLucas95338/farmvision/internal/pipeline"
)

const (
	DefaultTTL = 10 * time.Minute
	keyPrefix  = "farmvision"
)

var ErrNotInitialized = errors.New("redis not initialized")

// Redis publica el último tracking para dashboards. Las claves expiran:
// no es almacenamiento, es una caché del estado vivo.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb, ttl: DefaultTTL}, nil
}

func FixKey() string { return keyPrefix + ":fix" }

func AnchorKey(id string) string { return keyPrefix + ":anchor:" + id }

// PublishTracking escribe el fix y cada ancla en un solo pipeline.
func (r *Redis) PublishTracking(ctx context.Context, tr *pipeline.TrackingObject) error {
	if r == nil || r.rdb == nil {
		return ErrNotInitialized
	}
	if tr == nil {
		return nil
	}

	fixVal, err := json.Marshal(tr)
	if err != nil {
		return err
	}

	_, err = r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, FixKey(), fixVal, r.ttl)
		for _, a := range tr.Anchors {
			val, err := json.Marshal(a)
			if err != nil {
				return err
			}
			p.Set(ctx, AnchorKey(a.ID), val, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// ForgetAnchor borra la clave de un ancla eliminada.
func (r *Redis) ForgetAnchor(ctx context.Context, id string) error {
	if r == nil || r.rdb == nil {
		return ErrNotInitialized
	}
	return r.rdb.Del(ctx, AnchorKey(id)).Err()
}

// LatestTracking lee el último tracking publicado.
func (r *Redis) LatestTracking(ctx context.Context) (*pipeline.TrackingObject, bool, error) {
	if r == nil || r.rdb == nil {
		return nil, false, ErrNotInitialized
	}
	val, err := r.rdb.Get(ctx, FixKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var tr pipeline.TrackingObject
	if err := json.Unmarshal(val, &tr); err != nil {
		return nil, false, err
	}
	return &tr, true, nil
}

// LatestAnchors hace MGET de las anclas pedidas; las que no existen se omiten.
func (r *Redis) LatestAnchors(ctx context.Context, ids []string) (map[string]pipeline.AnchorView, error) {
	out := make(map[string]pipeline.AnchorView, len(ids))
	if r == nil || r.rdb == nil {
		return out, ErrNotInitialized
	}
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = AnchorKey(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return out, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var a pipeline.AnchorView
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			continue
		}
		out[ids[i]] = a
	}
	return out, nil
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
