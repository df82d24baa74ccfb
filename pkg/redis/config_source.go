package redis

import (
	"context"
	"errors"

	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type hashGetter interface {
	HGet(ctx context.Context, key, field string) (string, error)
}

// ConfigSource exposes a legacy configuration hash as an env.Source. Each
// logical key is read from the hash field of the same name.
type ConfigSource struct {
	store  hashGetter
	key    string
	logger *logger.Logger
}

func NewConfigSource(store hashGetter, key string, logg *logger.Logger) *ConfigSource {
	return &ConfigSource{store: store, key: key, logger: logg}
}

func (s *ConfigSource) Name() string {
	return "redis:" + s.key
}

// Lookup never fails the caller; store errors degrade to "not found".
func (s *ConfigSource) Lookup(ctx context.Context, field string) (string, bool) {
	if s == nil || s.store == nil || s.key == "" {
		return "", false
	}
	val, err := s.store.HGet(ctx, s.key, field)
	if err != nil {
		if !errors.Is(err, redis.Nil) && s.logger != nil {
			logCtx := s.logger.WithFields(ctx, map[string]any{"config_key": s.key, "field": field})
			s.logger.Warn(logCtx, "legacy config lookup failed")
		}
		return "", false
	}
	return val, true
}
