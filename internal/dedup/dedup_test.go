package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConcurrentCallersShareOneFetch(t *testing.T) {
	d := New()

	var (
		calls   atomic.Int32
		release = make(chan struct{})
		started = make(chan struct{})
		once    sync.Once
	)
	fetch := func(context.Context) ([]model.Article, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return []model.Article{{ID: "x"}}, nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([][]model.Article, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		got, _, err := d.Wrap(context.Background(), "technology", fetch)
		assert.NoError(t, err)
		results[0] = got
	}()
	<-started

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, err := d.Wrap(context.Background(), "technology", fetch)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	// Let the followers block on the in-flight call before releasing it.
	require.Eventually(t, func() bool { return d.Waiting() == n }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, got := range results {
		require.Len(t, got, 1)
		assert.Equal(t, "x", got[0].ID)
	}
}

func TestKeyIsReleasedAfterFailure(t *testing.T) {
	d := New()
	boom := errors.New("boom")

	_, _, err := d.Wrap(context.Background(), "world", func(context.Context) ([]model.Article, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	got, shared, err := d.Wrap(context.Background(), "world", func(context.Context) ([]model.Article, error) {
		return []model.Article{{ID: "ok"}}, nil
	})
	require.NoError(t, err)
	assert.False(t, shared)
	assert.Equal(t, "ok", got[0].ID)
}

func TestDistinctKeysRunIndependently(t *testing.T) {
	d := New()
	var calls atomic.Int32
	fetch := func(context.Context) ([]model.Article, error) {
		calls.Add(1)
		return nil, nil
	}

	_, _, err := d.Wrap(context.Background(), "world", fetch)
	require.NoError(t, err)
	_, _, err = d.Wrap(context.Background(), "sports", fetch)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestResultsAreNotAliased(t *testing.T) {
	d := New()
	shared := []model.Article{{ID: "a"}}

	got, _, err := d.Wrap(context.Background(), "world", func(context.Context) ([]model.Article, error) {
		return shared, nil
	})
	require.NoError(t, err)

	got[0].ID = "mutated"
	assert.Equal(t, "a", shared[0].ID)
}
