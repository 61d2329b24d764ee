package settings

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Global tunable keys stored in the global_settings table. Values are
// string-typed and parsed on read.
const (
	KeyInviteTokenTTLHours = "invite_token_ttl_hours"
	KeyInviteDailyLimit    = "invite_daily_limit"
)

const (
	DefaultInviteTokenTTLHours = 48
	DefaultInviteDailyLimit    = 10
)

// Store reads raw setting values from persistence. A nil result means the
// key does not exist.
type Store interface {
	Get(ctx context.Context, key string) (*string, error)
}

// Service is a read-through TTL cache over the global_settings table. It is
// an explicit, injected dependency of the lifecycle engine, never ambient
// global state.
type Service struct {
	store  Store
	cache  *cache
	logger zerolog.Logger
}

func NewService(store Store, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  newCache(cacheTTL),
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// GetString returns the raw value for key, or fallback when the key is
// absent or the store fails. Store failures serve the fallback rather than
// propagating: tunables must never take a lifecycle operation down.
func (s *Service) GetString(ctx context.Context, key, fallback string) string {
	if value, ok := s.cache.get(key); ok {
		if value == nil {
			return fallback
		}
		return *value
	}

	value, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("settings load failed, serving fallback")
		return fallback
	}
	s.cache.set(key, value)
	if value == nil {
		return fallback
	}
	return *value
}

// GetInt parses the value for key as an int, falling back on absence or a
// malformed value.
func (s *Service) GetInt(ctx context.Context, key string, fallback int) int {
	raw := s.GetString(ctx, key, "")
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Warn().Str("key", key).Str("value", raw).Msg("malformed int setting, serving fallback")
		return fallback
	}
	return parsed
}

// Invalidate drops one key from the cache, or the whole cache when key is
// empty.
func (s *Service) Invalidate(key string) {
	if key == "" {
		s.cache.invalidateAll()
		return
	}
	s.cache.invalidate(key)
}

// InviteTokenTTL returns the configured invitation TTL.
func (s *Service) InviteTokenTTL(ctx context.Context) time.Duration {
	hours := s.GetInt(ctx, KeyInviteTokenTTLHours, DefaultInviteTokenTTLHours)
	if hours <= 0 {
		hours = DefaultInviteTokenTTLHours
	}
	return time.Duration(hours) * time.Hour
}

// InviteDailyLimit returns the per-organization invitation cap for a
// trailing 24h window.
func (s *Service) InviteDailyLimit(ctx context.Context) int {
	limit := s.GetInt(ctx, KeyInviteDailyLimit, DefaultInviteDailyLimit)
	if limit <= 0 {
		limit = DefaultInviteDailyLimit
	}
	return limit
}
