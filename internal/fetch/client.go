package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Key identifies one fetchable resource
type Key struct {
	Kind string
	ID   string
}

// NewKey builds a key from a resource kind and id
func NewKey(kind, id string) Key {
	return Key{Kind: kind, ID: id}
}

func (k Key) String() string {
	return k.Kind + ":" + k.ID
}

// Result is a cached fetch outcome. Found is false for resources that do not exist.
type Result struct {
	Value any
	Found bool
}

// Producer performs the actual external call for a key
type Producer func(ctx context.Context) (any, error)

// Throttle hands out dispatch slots. *rate.Limiter satisfies it.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Config holds the throttle settings for a client
type Config struct {
	// RatePerSecond is the maximum number of dispatches per second across all callers
	RatePerSecond float64
	// Burst is how many dispatches may happen back to back
	Burst int
}

// DefaultConfig returns the control plane's documented budget of five calls per second
func DefaultConfig() Config {
	return Config{
		RatePerSecond: 5,
		Burst:         1,
	}
}

// Stats is a snapshot of client counters
type Stats struct {
	Hits       int64 `json:"hits" yaml:"hits"`
	Misses     int64 `json:"misses" yaml:"misses"`
	Dispatches int64 `json:"dispatches" yaml:"dispatches"`
	Failures   int64 `json:"failures" yaml:"failures"`
	Entries    int   `json:"entries" yaml:"entries"`
}

// Client is a thread-safe cache in front of a global dispatch throttle
type Client struct {
	mu       sync.RWMutex
	cache    map[Key]Result
	group    singleflight.Group
	throttle Throttle
	logger   *logrus.Logger

	hits       atomic.Int64
	misses     atomic.Int64
	dispatches atomic.Int64
	failures   atomic.Int64
}

// New creates a client throttled by a token bucket built from cfg
func New(cfg Config, logger *logrus.Logger) *Client {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultConfig().RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return NewWithThrottle(rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst), logger)
}

// NewWithThrottle creates a client using the given throttle
func NewWithThrottle(throttle Throttle, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		cache:    make(map[Key]Result),
		throttle: throttle,
		logger:   logger,
	}
}

// Fetch returns the cached result for key, or acquires a dispatch slot and runs produce.
// Concurrent first fetches of the same key share one producer call. The shared call
// keeps the values of ctx but not its cancellation, so a caller that gives up only
// abandons its own wait and the remaining callers still receive the result.
func (c *Client) Fetch(ctx context.Context, key Key, produce Producer) (Result, error) {
	if r, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return r, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		// a racing caller may have filled the entry between lookup and Do
		if r, ok := c.lookup(key); ok {
			c.hits.Add(1)
			return r, nil
		}
		c.misses.Add(1)

		if err := c.throttle.Wait(shared); err != nil {
			c.failures.Add(1)
			return nil, &TransientError{Key: key, Err: fmt.Errorf("wait for dispatch slot: %w", err)}
		}
		c.dispatches.Add(1)

		value, err := produce(shared)
		switch {
		case err == nil:
			r := Result{Value: value, Found: true}
			c.store(key, r)
			return r, nil
		case errors.Is(err, ErrNotFound):
			c.logger.WithField("key", key.String()).Debug("resource not found, caching absence")
			r := Result{}
			c.store(key, r)
			return r, nil
		default:
			c.failures.Add(1)
			c.logger.WithField("key", key.String()).Warnf("fetch failed: %v", err)
			return nil, &TransientError{Key: key, Err: err}
		}
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	case <-ctx.Done():
		return Result{}, &TransientError{Key: key, Err: ctx.Err()}
	}
}

// Wait takes one dispatch slot for a call made outside Fetch, such as a follow-up page
// of a listing that is already being produced. It counts as a dispatch.
func (c *Client) Wait(ctx context.Context) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return err
	}
	c.dispatches.Add(1)
	return nil
}

// Cached reports whether key already has a cached result
func (c *Client) Cached(key Key) bool {
	_, ok := c.lookup(key)
	return ok
}

// Stats returns a snapshot of the client counters
func (c *Client) Stats() Stats {
	c.mu.RLock()
	entries := len(c.cache)
	c.mu.RUnlock()
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Dispatches: c.dispatches.Load(),
		Failures:   c.failures.Load(),
		Entries:    entries,
	}
}

func (c *Client) lookup(key Key) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.cache[key]
	return r, ok
}

func (c *Client) store(key Key, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = r
}

// Get fetches key and asserts the cached value to T.
// found is false when the resource does not exist.
func Get[T any](ctx context.Context, c *Client, key Key, produce func(ctx context.Context) (T, error)) (value T, found bool, err error) {
	r, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return produce(ctx)
	})
	if err != nil || !r.Found {
		return value, false, err
	}
	value, ok := r.Value.(T)
	if !ok {
		return value, false, fmt.Errorf("fetch %s: cached value has type %T", key, r.Value)
	}
	return value, true, nil
}
