package instagram

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jdh4601/ClosetBot/internal/adapter/cache"
	"github.com/jdh4601/ClosetBot/internal/adapter/observability"
	"github.com/jdh4601/ClosetBot/internal/domain"
	"github.com/jdh4601/ClosetBot/internal/service/ratelimiter"
	"github.com/jdh4601/ClosetBot/internal/service/retry"
)

// fetcher is the raw client surface the facade composes over.
type fetcher interface {
	GetProfile(ctx context.Context, handle string, mediaLimit int) (domain.DiscoveredProfile, error)
	ValidateAccount(ctx context.Context, handle string) (domain.AccountValidation, error)
}

// Service layers caching, budget limiting, and retries over the raw client.
// It is the domain.ProfileFetcher the pipeline consumes: a cache hit costs
// nothing, an upstream fetch consumes one budget token and increments the
// job's call counter.
type Service struct {
	client         fetcher
	cache          *cache.Cache
	limiter        *ratelimiter.Limiter
	profilePolicy  retry.Policy
	validatePolicy retry.Policy
	limiterTimeout time.Duration
}

var _ domain.ProfileFetcher = (*Service)(nil)

// WithRetryPolicies overrides the default backoff schedules.
func (s *Service) WithRetryPolicies(profile, validate retry.Policy) *Service {
	s.profilePolicy = profile
	s.validatePolicy = validate
	return s
}

func NewService(client *Client, c *cache.Cache, l *ratelimiter.Limiter, limiterTimeout time.Duration) *Service {
	return &Service{
		client:         client,
		cache:          c,
		limiter:        l,
		profilePolicy:  retry.ProfilePolicy(),
		validatePolicy: retry.ValidatePolicy(),
		limiterTimeout: limiterTimeout,
	}
}

// GetProfile returns a profile with up to mediaLimit recent posts. Profile
// and media cache independently; both must hit to avoid an upstream call,
// since one discovery call returns both anyway.
func (s *Service) GetProfile(ctx context.Context, handle string, mediaLimit int) (domain.DiscoveredProfile, error) {
	profile, perr := s.cache.GetProfile(ctx, handle)
	observability.ObserveCache("profile", perr == nil)
	if perr == nil && mediaLimit <= 0 {
		return profile, nil
	}
	if perr == nil {
		media, merr := s.cache.GetMedia(ctx, handle)
		observability.ObserveCache("media", merr == nil)
		if merr == nil {
			if len(media) > mediaLimit {
				media = media[:mediaLimit]
			}
			profile.Media = media
			return profile, nil
		}
	}

	if err := s.acquire(ctx, 1); err != nil {
		return domain.DiscoveredProfile{}, err
	}
	domain.APICallCounterFrom(ctx).Add(1)

	var fetched domain.DiscoveredProfile
	start := time.Now()
	err := retry.Do(ctx, s.profilePolicy, "instagram.get_profile", func(ctx context.Context) error {
		var ferr error
		fetched, ferr = s.client.GetProfile(ctx, handle, mediaLimit)
		return ferr
	})
	observability.ObserveDiscoveryCall("get_profile", outcome(err), time.Since(start))
	if err != nil {
		return domain.DiscoveredProfile{}, err
	}

	s.cache.SetProfile(ctx, handle, fetched)
	if mediaLimit > 0 {
		s.cache.SetMedia(ctx, handle, fetched.Media)
	}
	return fetched, nil
}

// ValidateAccount checks whether a handle can be analyzed. Budget exhaustion
// and transient failures come back as an indeterminate validation rather
// than an error, so callers can report per-handle outcomes.
func (s *Service) ValidateAccount(ctx context.Context, handle string) (domain.AccountValidation, error) {
	if err := s.acquire(ctx, 1); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			return domain.AccountValidation{Valid: false, Error: err.Error()}, nil
		}
		return domain.AccountValidation{}, err
	}
	domain.APICallCounterFrom(ctx).Add(1)

	var v domain.AccountValidation
	start := time.Now()
	err := retry.Do(ctx, s.validatePolicy, "instagram.validate_account", func(ctx context.Context) error {
		var verr error
		v, verr = s.client.ValidateAccount(ctx, handle)
		return verr
	})
	observability.ObserveDiscoveryCall("validate_account", outcome(err), time.Since(start))
	if err != nil {
		slog.Warn("account validation indeterminate",
			slog.String("handle", handle), slog.Any("error", err))
		return domain.AccountValidation{Valid: false, Error: err.Error()}, nil
	}
	return v, nil
}

// InvalidateCache drops cached entries for a handle.
func (s *Service) InvalidateCache(ctx context.Context, handle string) error {
	return s.cache.Invalidate(ctx, handle)
}

// LimiterStatus reports the shared discovery budget.
func (s *Service) LimiterStatus(ctx context.Context) ratelimiter.Status {
	return s.limiter.Status(ctx)
}

func (s *Service) acquire(ctx context.Context, n int) error {
	start := time.Now()
	err := s.limiter.Acquire(ctx, n, s.limiterTimeout)
	observability.RateLimiterWaitSeconds.Observe(time.Since(start).Seconds())
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case domain.IsTerminalAccountError(err):
		return "account_error"
	default:
		return "error"
	}
}
