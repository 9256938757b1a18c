package usersettings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const settingsKey = "greenwallet:usersettings"

const (
	fieldDismissedStrippenError  = "dismissed_strippen_error"
	fieldDismissedPolicyChange   = "dismissed_policy_change"
	fieldDismissedBlockedEvents  = "dismissed_blocked_events"
	fieldStrippenErrorOccurrence = "strippen_error_count"
)

// RedisStore persists settings in a Redis hash so dismissal memory survives
// process restarts.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context) (Settings, error) {
	values, err := s.client.HGetAll(ctx, settingsKey).Result()
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	settings := Settings{
		HasDismissedStrippenError:       values[fieldDismissedStrippenError] == "1",
		HasDismissedPolicyChangeBanner:  values[fieldDismissedPolicyChange] == "1",
		HasDismissedBlockedEventsBanner: values[fieldDismissedBlockedEvents] == "1",
	}
	if raw, ok := values[fieldStrippenErrorOccurrence]; ok {
		count, err := strconv.Atoi(raw)
		if err == nil {
			settings.StrippenErrorOccurrenceCount = count
		}
	}
	return settings, nil
}

func (s *RedisStore) setBool(ctx context.Context, field string, value bool) error {
	raw := "0"
	if value {
		raw = "1"
	}
	if err := s.client.HSet(ctx, settingsKey, field, raw).Err(); err != nil {
		return fmt.Errorf("write setting %s: %w", field, err)
	}
	return nil
}

func (s *RedisStore) SetDismissedStrippenError(ctx context.Context, dismissed bool) error {
	return s.setBool(ctx, fieldDismissedStrippenError, dismissed)
}

func (s *RedisStore) SetDismissedPolicyChangeBanner(ctx context.Context, dismissed bool) error {
	return s.setBool(ctx, fieldDismissedPolicyChange, dismissed)
}

func (s *RedisStore) SetDismissedBlockedEventsBanner(ctx context.Context, dismissed bool) error {
	return s.setBool(ctx, fieldDismissedBlockedEvents, dismissed)
}

func (s *RedisStore) IncrementStrippenErrorCount(ctx context.Context) (int, error) {
	count, err := s.client.HIncrBy(ctx, settingsKey, fieldStrippenErrorOccurrence, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment error count: %w", err)
	}
	return int(count), nil
}

func (s *RedisStore) ResetStrippenErrorCount(ctx context.Context) error {
	if err := s.client.HDel(ctx, settingsKey, fieldStrippenErrorOccurrence).Err(); err != nil {
		return fmt.Errorf("reset error count: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, settingsKey).Err(); err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
