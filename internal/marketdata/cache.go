package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedFeed puts a short-TTL Redis cache in front of another feed. Cache
// failures fall through to the inner feed.
type CachedFeed struct {
	Inner  Feed
	Client *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func NewCachedFeed(inner Feed, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedFeed {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &CachedFeed{Inner: inner, Client: client, TTL: ttl, Logger: logger}
}

func cacheKey(province, marketType string) string {
	return "powerx:quote:" + province + ":" + marketType
}

func (f *CachedFeed) CurrentQuote(ctx context.Context, province, marketType string) (Quote, error) {
	if f.Client == nil {
		return f.Inner.CurrentQuote(ctx, province, marketType)
	}

	key := cacheKey(province, marketType)
	raw, err := f.Client.Get(ctx, key).Bytes()
	if err == nil {
		var q Quote
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, nil
		}
	} else if err != redis.Nil && f.Logger != nil {
		f.Logger.Debug("quote cache get failed", zap.String("key", key), zap.Error(err))
	}

	q, err := f.Inner.CurrentQuote(ctx, province, marketType)
	if err != nil {
		return Quote{}, err
	}
	if raw, err := json.Marshal(q); err == nil {
		if err := f.Client.Set(ctx, key, raw, f.TTL).Err(); err != nil && f.Logger != nil {
			f.Logger.Debug("quote cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return q, nil
}
