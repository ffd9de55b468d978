// Package cache stores discovery API responses in Redis so repeat lookups
// inside the TTL window cost no API budget. Profiles and media lists cache
// independently: profile data moves slowly, media churns.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

const (
	profileKeyPrefix = "ig:profile:"
	mediaKeyPrefix   = "ig:media:"
)

// ErrMiss reports an absent or expired entry.
var ErrMiss = errors.New("cache miss")

// envelope wraps every cached value with its timestamps.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Cache is the two-tier discovery response cache. A Redis failure on read or
// write degrades to a miss so the pipeline keeps working without Redis.
type Cache struct {
	rdb        *redis.Client
	profileTTL time.Duration
	mediaTTL   time.Duration
	now        func() time.Time
}

func New(rdb *redis.Client, profileTTL, mediaTTL time.Duration) *Cache {
	return &Cache{rdb: rdb, profileTTL: profileTTL, mediaTTL: mediaTTL, now: time.Now}
}

// GetProfile returns the cached profile (without media) for a handle.
func (c *Cache) GetProfile(ctx context.Context, handle string) (domain.DiscoveredProfile, error) {
	var p domain.DiscoveredProfile
	if err := c.get(ctx, profileKeyPrefix+handle, &p); err != nil {
		return domain.DiscoveredProfile{}, err
	}
	return p, nil
}

// SetProfile caches a profile for the profile TTL. Media is stripped; it has
// its own entry and TTL.
func (c *Cache) SetProfile(ctx context.Context, handle string, p domain.DiscoveredProfile) {
	p.Media = nil
	c.set(ctx, profileKeyPrefix+handle, p, c.profileTTL)
}

// GetMedia returns the cached recent media list for a handle.
func (c *Cache) GetMedia(ctx context.Context, handle string) ([]domain.DiscoveredMedia, error) {
	var media []domain.DiscoveredMedia
	if err := c.get(ctx, mediaKeyPrefix+handle, &media); err != nil {
		return nil, err
	}
	return media, nil
}

// SetMedia caches a media list for the media TTL.
func (c *Cache) SetMedia(ctx context.Context, handle string, media []domain.DiscoveredMedia) {
	c.set(ctx, mediaKeyPrefix+handle, media, c.mediaTTL)
}

// Stats counts cached entries per tier.
type Stats struct {
	ProfileEntries int `json:"profile_entries"`
	MediaEntries   int `json:"media_entries"`
}

// Stats reports how many profiles and media lists are currently cached.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.ProfileEntries, err = c.countKeys(ctx, profileKeyPrefix+"*"); err != nil {
		return Stats{}, fmt.Errorf("op=cache.stats: %w", err)
	}
	if st.MediaEntries, err = c.countKeys(ctx, mediaKeyPrefix+"*"); err != nil {
		return Stats{}, fmt.Errorf("op=cache.stats: %w", err)
	}
	return st, nil
}

func (c *Cache) countKeys(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	total := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

// Invalidate drops both entries for a handle.
func (c *Cache) Invalidate(ctx context.Context, handle string) error {
	if err := c.rdb.Del(ctx, profileKeyPrefix+handle, mediaKeyPrefix+handle).Err(); err != nil {
		return fmt.Errorf("op=cache.invalidate handle=%s: %w", handle, err)
	}
	return nil
}

func (c *Cache) get(ctx context.Context, key string, out any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		slog.Warn("cache read failed, treating as miss",
			slog.String("key", key), slog.Any("error", err))
		return ErrMiss
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("cache entry corrupt, treating as miss",
			slog.String("key", key), slog.Any("error", err))
		return ErrMiss
	}
	if !env.ExpiresAt.IsZero() && c.now().After(env.ExpiresAt) {
		return ErrMiss
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		slog.Warn("cache entry corrupt, treating as miss",
			slog.String("key", key), slog.Any("error", err))
		return ErrMiss
	}
	return nil
}

func (c *Cache) set(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache marshal failed, skipping store",
			slog.String("key", key), slog.Any("error", err))
		return
	}
	now := c.now()
	env := envelope{Data: data, CachedAt: now, ExpiresAt: now.Add(ttl)}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		slog.Warn("cache write failed, skipping store",
			slog.String("key", key), slog.Any("error", err))
	}
}
