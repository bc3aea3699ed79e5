// Package preload keeps a small number of warmed playback sessions for
// books the listener is likely to open next, so resuming one can start
// without a cold decode.
//
// Preloading is best effort. Failures to open a session are logged and
// dropped; nothing here can fail primary playback.
package preload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	qerr "github.com/tessro/quire/internal/errors"
)

const (
	DefaultCapacity = 2
	DefaultTTL      = 5 * time.Minute
)

// Session is a warmed playback handle. Whoever holds it must Close it.
type Session interface {
	Close() error
}

// Opener creates sessions for a source URL.
type Opener interface {
	Open(ctx context.Context, sourceURL string) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, sourceURL string) (Session, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, sourceURL string) (Session, error) {
	return f(ctx, sourceURL)
}

// Metrics receives cache events. metrics.Metrics satisfies it.
type Metrics interface {
	PreloadEvent(event string)
	SetPreloadEntries(n int)
}

// Item describes one cached session.
type Item struct {
	Session   Session
	BookID    string
	SourceURL string
	CreatedAt time.Time
}

// Age returns how old the item is at now.
func (i Item) Age(now time.Time) time.Duration {
	return now.Sub(i.CreatedAt)
}

type entry struct {
	Item
	transferred bool
}

// Cache is a capacity- and TTL-bounded set of preloaded sessions keyed by
// book id. Create one per listening session and Dispose it at the end.
type Cache struct {
	mu       sync.Mutex
	opener   Opener
	entries  *lru.Cache[string, *entry]
	inflight map[string]struct{}
	evicted  []Session
	disposed bool

	capacity int
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity sets the maximum number of cached sessions.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithTTL sets how long a session stays usable after it was created.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger for swallowed failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics reports cache events.
func WithMetrics(m Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates an empty cache that opens sessions with opener.
func New(opener Opener, opts ...Option) *Cache {
	c := &Cache{
		opener:   opener,
		inflight: make(map[string]struct{}),
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	// The lru is sized one above capacity so Add never evicts on its own;
	// Preload evicts the oldest explicitly before inserting.
	entries, err := lru.NewWithEvict[string, *entry](c.capacity+1, c.onEvict)
	if err != nil {
		panic(err) // only for size <= 0, which the options rule out
	}
	c.entries = entries
	return c
}

// onEvict runs synchronously inside entries calls made with c.mu held.
func (c *Cache) onEvict(_ string, e *entry) {
	if e.transferred {
		return
	}
	c.evicted = append(c.evicted, e.Session)
}

// Preload warms a session for bookID. It is a no-op when bookID is already
// cached and unexpired, and it never reports failure.
func (c *Cache) Preload(ctx context.Context, bookID, sourceURL string) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	if e, ok := c.entries.Peek(bookID); ok {
		if !c.expired(e) {
			c.mu.Unlock()
			return
		}
		c.entries.Remove(bookID)
		c.event("expired")
	}
	if _, busy := c.inflight[bookID]; busy {
		c.mu.Unlock()
		return
	}
	c.inflight[bookID] = struct{}{}
	c.mu.Unlock()
	c.closeEvicted()

	sess, err := c.opener.Open(ctx, sourceURL)

	c.mu.Lock()
	delete(c.inflight, bookID)
	if err != nil {
		c.mu.Unlock()
		c.event("failed")
		err = fmt.Errorf("%w: %w", qerr.ErrPreloadFailure, err)
		c.logger.Warn("preload failed", "book", bookID, "source", sourceURL, "error", err)
		return
	}
	if c.disposed {
		c.mu.Unlock()
		closeSession(c.logger, sess)
		return
	}

	for c.entries.Len() >= c.capacity {
		if _, _, ok := c.entries.RemoveOldest(); !ok {
			break
		}
		c.event("evicted")
	}
	c.entries.Add(bookID, &entry{Item: Item{
		Session:   sess,
		BookID:    bookID,
		SourceURL: sourceURL,
		CreatedAt: c.now(),
	}})
	n := c.entries.Len()
	c.mu.Unlock()

	c.event("stored")
	c.gauge(n)
	c.logger.Debug("preloaded", "book", bookID, "source", sourceURL)
	c.closeEvicted()
}

// IsPreloaded reports whether an unexpired session for bookID is cached.
// An expired entry is evicted as a side effect.
func (c *Cache) IsPreloaded(bookID string) bool {
	c.mu.Lock()
	e, ok := c.entries.Peek(bookID)
	if ok && c.expired(e) {
		c.entries.Remove(bookID)
		ok = false
		c.event("expired")
	}
	n := c.entries.Len()
	c.mu.Unlock()

	c.gauge(n)
	c.closeEvicted()
	return ok
}

// Transfer removes the session for bookID from the cache and hands it to
// the caller, who becomes responsible for closing it. A second Transfer
// for the same id returns false.
func (c *Cache) Transfer(bookID string) (Session, bool) {
	c.mu.Lock()
	e, ok := c.entries.Peek(bookID)
	if !ok {
		c.mu.Unlock()
		c.event("miss")
		return nil, false
	}
	if c.expired(e) {
		c.entries.Remove(bookID)
		n := c.entries.Len()
		c.mu.Unlock()
		c.event("expired")
		c.gauge(n)
		c.closeEvicted()
		return nil, false
	}
	e.transferred = true
	c.entries.Remove(bookID)
	n := c.entries.Len()
	c.mu.Unlock()

	c.event("transferred")
	c.gauge(n)
	return e.Session, true
}

// CleanupExpired evicts every entry older than the TTL and returns how
// many were removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	removed := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if ok && c.expired(e) {
			c.entries.Remove(key)
			removed++
		}
	}
	n := c.entries.Len()
	c.mu.Unlock()

	for i := 0; i < removed; i++ {
		c.event("expired")
	}
	c.gauge(n)
	c.closeEvicted()
	return removed
}

// RunJanitor calls CleanupExpired every interval until ctx is done.
func (c *Cache) RunJanitor(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				c.logger.Debug("preload sweep", "expired", n)
			}
		}
	}
}

// Dispose closes every held session and empties the cache. Later Preload
// calls are ignored.
func (c *Cache) Dispose() {
	c.mu.Lock()
	c.disposed = true
	c.entries.Purge()
	c.mu.Unlock()

	c.gauge(0)
	c.closeEvicted()
}

// Len returns the number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Items returns the cached items, oldest first.
func (c *Cache) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.entries.Keys()
	items := make([]Item, 0, len(keys))
	for _, k := range keys {
		if e, ok := c.entries.Peek(k); ok {
			items = append(items, e.Item)
		}
	}
	return items
}

func (c *Cache) expired(e *entry) bool {
	return e.Age(c.now()) > c.ttl
}

func (c *Cache) closeEvicted() {
	c.mu.Lock()
	sessions := c.evicted
	c.evicted = nil
	c.mu.Unlock()

	for _, s := range sessions {
		closeSession(c.logger, s)
	}
}

func (c *Cache) event(name string) {
	if c.metrics != nil {
		c.metrics.PreloadEvent(name)
	}
}

func (c *Cache) gauge(n int) {
	if c.metrics != nil {
		c.metrics.SetPreloadEntries(n)
	}
}

func closeSession(logger *slog.Logger, s Session) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		logger.Warn("closing preloaded session", "error", err)
	}
}
