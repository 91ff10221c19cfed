package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-verifier/internal/model"
)

func staticScraper(name string, contacts ...model.ContactDetail) *Func {
	return NewFunc(name, func(_ context.Context, _ model.LeadInput) (*model.LeadVerification, error) {
		return &model.LeadVerification{Source: name, Contacts: contacts}, nil
	})
}

func TestNewRateLimiter_NoLimit(t *testing.T) {
	assert.Nil(t, NewRateLimiter(0))
	assert.Nil(t, NewRateLimiter(-5))

	var r *RateLimiter
	assert.NoError(t, r.Acquire(context.Background()))
	assert.Zero(t, r.Interval())
}

func TestRateLimiter_Interval(t *testing.T) {
	assert.Equal(t, time.Second, NewRateLimiter(60).Interval())
	assert.Equal(t, 2*time.Second, NewRateLimiter(30).Interval())
}

func TestRateLimiter_SpacesCalls(t *testing.T) {
	r := NewRateLimiter(1200) // 50ms
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, r.Acquire(ctx))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "first call is not delayed")

	require.NoError(t, r.Acquire(ctx))
	require.NoError(t, r.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimiter_ConcurrentCallersSerialize(t *testing.T) {
	r := NewRateLimiter(1200) // 50ms
	ctx := context.Background()

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Acquire(ctx))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, times, 4)
	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 140*time.Millisecond)
}

func TestRateLimiter_ContextCancel(t *testing.T) {
	r := NewRateLimiter(1) // one per minute
	require.NoError(t, r.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, r.Acquire(ctx))
}

func TestRateLimited_NameFallsBackToInner(t *testing.T) {
	inner := staticScraper("inner")
	assert.Equal(t, "inner", NewRateLimited(inner, "", 0, nil).Name())
	assert.Equal(t, "Display", NewRateLimited(inner, "Display", 0, nil).Name())
}

func TestRateLimited_AppliesDelay(t *testing.T) {
	inner := staticScraper("s", model.ContactDetail{Type: "phone", Value: "1"})
	w := NewRateLimited(inner, "", 60*time.Millisecond, nil)

	start := time.Now()
	v, err := w.Verify(context.Background(), model.LeadInput{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, "s", v.Source)
	assert.Len(t, v.Contacts, 1)
}

func TestRateLimited_ErrorsPassThroughWithoutDelay(t *testing.T) {
	boom := errors.New("boom")
	inner := NewFunc("s", func(context.Context, model.LeadInput) (*model.LeadVerification, error) {
		return nil, boom
	})
	w := NewRateLimited(inner, "", time.Hour, nil)

	start := time.Now()
	_, err := w.Verify(context.Background(), model.LeadInput{})
	assert.Same(t, boom, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimited_Unwrap(t *testing.T) {
	inner := staticScraper("s")
	w := NewRateLimited(inner, "x", 0, nil)
	assert.Same(t, inner, w.Unwrap())
	assert.Same(t, inner, Unwrap(w))
}
