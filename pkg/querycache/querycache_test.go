package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// versioned returns a fetcher that yields "v1", "v2", ... on successive calls.
func versioned(calls *atomic.Int32) FetchFunc {
	return func(context.Context) ([]byte, error) {
		n := calls.Add(1)
		return []byte(fmt.Sprintf(`"v%d"`, n)), nil
	}
}

func newCache(staleTime time.Duration) (*Cache, *clock) {
	clk := &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	return New(Options{StaleTime: staleTime, Now: clk.Now, Logger: zerolog.Nop()}), clk
}

func TestKey(t *testing.T) {
	assert.Equal(t, "get_all_books", Key("get_all_books", nil))
	assert.Equal(t, "get_all_books", Key("get_all_books", []byte("{}")))
	assert.Equal(t, `get_book_by_id?{"id":"b1"}`, Key("get_book_by_id", []byte(`{"id":"b1"}`)))
}

func TestGet_FreshHitDoesNotFetch(t *testing.T) {
	c, clk := newCache(time.Minute)
	ctx := context.Background()
	var calls atomic.Int32
	fetch := versioned(&calls)

	first, err := c.Get(ctx, "get_all_books", "get_all_books", fetch)
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	second, err := c.Get(ctx, "get_all_books", "get_all_books", fetch)
	require.NoError(t, err)

	assert.Equal(t, `"v1"`, string(first))
	assert.Equal(t, `"v1"`, string(second))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_ConcurrentCallsShareOneFetch(t *testing.T) {
	c, _ := newCache(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte(`[1,2,3]`), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := c.Get(context.Background(), "get_dashboard_stats", "get_dashboard_stats", fetch)
			assert.NoError(t, err)
			results[i] = string(data)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, `[1,2,3]`, r)
	}
}

func TestGet_StaleIsServedWhileRefreshing(t *testing.T) {
	c, clk := newCache(time.Minute)
	ctx := context.Background()
	var calls atomic.Int32
	fetch := versioned(&calls)

	_, err := c.Get(ctx, "get_overdue_books", "get_overdue_books", fetch)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	data, err := c.Get(ctx, "get_overdue_books", "get_overdue_books", fetch)
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, string(data))

	c.Wait()
	cached, ok := c.Peek("get_overdue_books")
	assert.True(t, ok)
	assert.Equal(t, `"v2"`, string(cached))
}

func TestInvalidate_NextReadRefetches(t *testing.T) {
	c, _ := newCache(time.Hour)
	ctx := context.Background()
	var books, stats atomic.Int32

	_, err := c.Get(ctx, "get_all_books", "get_all_books", versioned(&books))
	require.NoError(t, err)
	_, err = c.Get(ctx, "get_all_books", `get_all_books?{"search":"dune"}`, versioned(&books))
	require.NoError(t, err)
	_, err = c.Get(ctx, "get_dashboard_stats", "get_dashboard_stats", versioned(&stats))
	require.NoError(t, err)

	assert.Equal(t, 2, c.Invalidate("get_all_books"))

	_, ok := c.Peek("get_all_books")
	assert.False(t, ok)
	_, ok = c.Peek("get_dashboard_stats")
	assert.True(t, ok)

	data, err := c.Get(ctx, "get_all_books", "get_all_books", versioned(&books))
	require.NoError(t, err)
	assert.Equal(t, `"v3"`, string(data))
	assert.Equal(t, int32(1), stats.Load())
}

func TestInvalidate_DuringLoadKeepsEntryInvalid(t *testing.T) {
	c, _ := newCache(time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Get(context.Background(), "get_all_lendings", "get_all_lendings", func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte(`"old"`), nil
		})
		assert.NoError(t, err)
	}()

	<-started
	c.Invalidate("get_all_lendings")
	close(release)
	<-done

	data, ok := c.Peek("get_all_lendings")
	assert.Equal(t, `"old"`, string(data))
	assert.False(t, ok)
}

func TestRefresh(t *testing.T) {
	c, _ := newCache(time.Hour)
	ctx := context.Background()
	var calls, studentCalls atomic.Int32

	_, err := c.Get(ctx, "list_backups", "list_backups", versioned(&calls))
	require.NoError(t, err)
	_, err = c.Get(ctx, "get_all_students", "get_all_students", func(context.Context) ([]byte, error) {
		if studentCalls.Add(1) > 1 {
			return nil, errors.New("offline")
		}
		return []byte(`[]`), nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, c.InvalidateAll())
	err = c.Refresh(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")

	data, ok := c.Peek("list_backups")
	assert.True(t, ok)
	assert.Equal(t, `"v2"`, string(data))

	_, ok = c.Peek("get_all_students")
	assert.False(t, ok)
}

func TestGet_ErrorIsNotCached(t *testing.T) {
	c, _ := newCache(time.Hour)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.Get(ctx, "get_all_books", "get_all_books", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	data, err := c.Get(ctx, "get_all_books", "get_all_books", func(context.Context) ([]byte, error) { return []byte(`[]`), nil })
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}
