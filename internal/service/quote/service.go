package quote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/oshokin/morning-glow/internal/logger"
	"github.com/oshokin/morning-glow/internal/metrics"
)

const (
	// CacheKeyText stores the last fetched quote.
	CacheKeyText = "quote/current"
	// CacheKeyFetchedAt stores when it was fetched, RFC 3339.
	CacheKeyFetchedAt = "quote/fetched_at"

	// DefaultInterval is the minimum delay between non-forced refreshes.
	DefaultInterval = time.Hour
)

// ErrRateLimited is returned by a non-forced refresh that came too early.
var ErrRateLimited = errors.New("quote refreshed recently")

//nolint:gochecknoglobals // Static fallback list.
var fallbackQuotes = []string{
	"Today is a clean slate. Breathe in the possibility and exhale the doubt.",
	"The sun does not compare itself to the moon; it just shines when it's time.",
	"Your potential is like the horizon, limitless and always worth chasing.",
	"Small steps in the right direction can lead to the biggest changes.",
	"Every morning is a revolution against the shadows of yesterday.",
}

// Quote is the text shown on wake-up.
type Quote struct {
	// Text is the quote itself.
	Text string
	// FetchedAt is when the text was generated. Zero for fallbacks.
	FetchedAt time.Time
	// Fallback is set when no quote was ever fetched.
	Fallback bool
}

// Fetcher generates a new quote.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Cache persists the current quote between restarts.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Service serves and refreshes the quote.
type Service struct {
	fetcher  Fetcher
	cache    Cache
	interval time.Duration
	now      func() time.Time

	limiter *rate.Limiter
	group   singleflight.Group

	mu      sync.RWMutex
	current Quote
}

// Option configures a Service.
type Option func(*Service)

// WithInterval sets the minimum delay between non-forced refreshes.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService restores the cached quote, if any, and seeds the rate limit with its fetch time.
func NewService(ctx context.Context, fetcher Fetcher, cache Cache, opts ...Option) *Service {
	s := &Service{
		fetcher:  fetcher,
		cache:    cache,
		interval: DefaultInterval,
		now:      time.Now,
		current:  Quote{Text: fallbackQuotes[0], Fallback: true},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.limiter = rate.NewLimiter(rate.Every(s.interval), 1)

	if cached, ok := s.restore(ctx); ok {
		s.current = cached

		if !cached.FetchedAt.IsZero() {
			s.limiter.AllowN(cached.FetchedAt, 1)
		}
	}

	return s
}

// Current returns the quote to show.
func (s *Service) Current() Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current
}

// Refresh fetches a new quote. Without force it runs at most once per interval.
// On failure the current quote is kept.
func (s *Service) Refresh(ctx context.Context, force bool) error {
	if !s.limiter.AllowN(s.now(), 1) && !force {
		metrics.QuoteRefreshes.WithLabelValues("limited").Inc()

		return ErrRateLimited
	}

	_, err, shared := s.group.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	if shared {
		logger.Debug(ctx, "Quote refresh shared with a concurrent caller")
	}

	return err
}

func (s *Service) refresh(ctx context.Context) error {
	if s.fetcher == nil {
		metrics.QuoteRefreshes.WithLabelValues("failed").Inc()

		return ErrNoAPIKey
	}

	text, err := s.fetcher.Fetch(ctx)
	if err != nil {
		metrics.QuoteRefreshes.WithLabelValues("failed").Inc()
		logger.WarnKV(ctx, "Quote refresh failed, keeping current quote", "error", err)

		return fmt.Errorf("fetch quote: %w", err)
	}

	q := Quote{Text: text, FetchedAt: s.now()}

	s.mu.Lock()
	s.current = q
	s.mu.Unlock()

	metrics.QuoteRefreshes.WithLabelValues("ok").Inc()
	logger.InfoKV(ctx, "Quote refreshed", "words", len(strings.Fields(text)))

	s.persist(ctx, q)

	return nil
}

func (s *Service) restore(ctx context.Context) (Quote, bool) {
	if s.cache == nil {
		return Quote{}, false
	}

	text, err := s.cache.Get(ctx, CacheKeyText)
	if err != nil || len(text) == 0 {
		return Quote{}, false
	}

	q := Quote{Text: string(text)}

	if raw, err := s.cache.Get(ctx, CacheKeyFetchedAt); err == nil {
		if fetchedAt, err := time.Parse(time.RFC3339Nano, string(raw)); err == nil {
			q.FetchedAt = fetchedAt
		}
	}

	return q, true
}

func (s *Service) persist(ctx context.Context, q Quote) {
	if s.cache == nil {
		return
	}

	err := errors.Join(
		s.cache.Put(ctx, CacheKeyText, []byte(q.Text)),
		s.cache.Put(ctx, CacheKeyFetchedAt, []byte(q.FetchedAt.Format(time.RFC3339Nano))),
	)
	if err != nil {
		logger.WarnKV(ctx, "Failed to cache quote", "error", err)
	}
}

// FallbackQuotes returns the built-in quotes used until one is fetched.
func FallbackQuotes() []string {
	return slices.Clone(fallbackQuotes)
}
