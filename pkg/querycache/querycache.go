// Package querycache caches command results on the client side. Entries are
// keyed by command name plus canonical arguments, concurrent identical loads
// share one fetch, stale entries are served while they refresh in the
// background, and invalidated entries are never served again.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the current result of one query.
type FetchFunc func(ctx context.Context) ([]byte, error)

type Options struct {
	// StaleTime is how long a result is served without a background refresh.
	StaleTime time.Duration
	// RefreshTimeout bounds background refreshes.
	RefreshTimeout time.Duration
	Now            func() time.Time
	Logger         zerolog.Logger
}

type entry struct {
	command   string
	data      []byte
	fetchedAt time.Time
	gen       uint64
	invalid   bool
	fetch     FetchFunc
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	wg      sync.WaitGroup

	staleTime      time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	logger         zerolog.Logger
}

func New(opts Options) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 30 * time.Second
	}
	return &Cache{
		entries:        make(map[string]*entry),
		staleTime:      opts.StaleTime,
		refreshTimeout: opts.RefreshTimeout,
		now:            opts.Now,
		logger:         opts.Logger,
	}
}

// Key builds the cache key of a query from its command and canonical JSON arguments.
func Key(command string, canonicalArgs []byte) string {
	if len(canonicalArgs) == 0 || string(canonicalArgs) == "{}" || string(canonicalArgs) == "null" {
		return command
	}
	return command + "?" + string(canonicalArgs)
}

// Get returns the cached result of the query or loads it with fetch.
func (c *Cache) Get(ctx context.Context, command, key string, fetch FetchFunc) ([]byte, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{command: command}
		c.entries[key] = e
	}
	e.fetch = fetch

	if e.data != nil && !e.invalid {
		data := e.data
		stale := c.now().Sub(e.fetchedAt) >= c.staleTime
		gen := e.gen
		c.mu.Unlock()

		if stale {
			c.refreshInBackground(key, gen, fetch)
		}
		return data, nil
	}
	gen := e.gen
	c.mu.Unlock()

	return c.load(ctx, key, gen, fetch)
}

func (c *Cache) load(ctx context.Context, key string, gen uint64, fetch FetchFunc) ([]byte, error) {
	v, err, _ := c.group.Do(flightKey(key, gen), func() (interface{}, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, gen, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) refreshInBackground(key string, gen uint64, fetch FetchFunc) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()

		if _, err := c.load(ctx, key, gen, fetch); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Background refresh failed")
		}
	}()
}

// store keeps data unless the entry was invalidated while it was loading:
// then the data is kept but stays invalid so the next read refetches.
func (c *Cache) store(key string, gen uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.data = data
	e.fetchedAt = c.now()
	if e.gen == gen {
		e.invalid = false
	}
}

func flightKey(key string, gen uint64) string {
	return key + "#" + strconv.FormatUint(gen, 10)
}

// Invalidate marks every cached query of the given commands as stale. Returns
// the number of entries affected.
func (c *Cache) Invalidate(commands ...string) int {
	set := make(map[string]bool, len(commands))
	for _, name := range commands {
		set[name] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if set[e.command] {
			e.invalid = true
			e.gen++
			n++
		}
	}
	return n
}

func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		e.invalid = true
		e.gen++
	}
	return len(c.entries)
}

// Refresh refetches every invalidated entry that has a loader.
func (c *Cache) Refresh(ctx context.Context) error {
	type pending struct {
		key   string
		gen   uint64
		fetch FetchFunc
	}

	c.mu.Lock()
	var todo []pending
	for key, e := range c.entries {
		if e.invalid && e.fetch != nil {
			todo = append(todo, pending{key: key, gen: e.gen, fetch: e.fetch})
		}
	}
	c.mu.Unlock()

	sort.Slice(todo, func(i, j int) bool { return todo[i].key < todo[j].key })

	var errs []error
	for _, p := range todo {
		if _, err := c.load(ctx, p.key, p.gen, p.fetch); err != nil {
			errs = append(errs, fmt.Errorf("failed to refresh %s: %w", p.key, err))
		}
	}
	return errors.Join(errs...)
}

// Peek returns the cached data of key and whether it may be served as is.
func (c *Cache) Peek(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.data == nil {
		return nil, false
	}
	return e.data, !e.invalid
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until background refreshes started so far are done.
func (c *Cache) Wait() {
	c.wg.Wait()
}
