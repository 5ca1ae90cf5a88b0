package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/utafrali/catalog-sync/internal/domain"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("prod_%03d", i)
	}
	return out
}

func self(s string) string { return s }

func okDeliver(context.Context, Batch[string]) (Outcome, error) { return Outcome{}, nil }

func TestSplit(t *testing.T) {
	tests := []struct {
		n, size   int
		wantSizes []int
	}{
		{0, 100, []int{}},
		{1, 100, []int{1}},
		{100, 100, []int{100}},
		{101, 100, []int{100, 1}},
		{250, 100, []int{100, 100, 50}},
		{5, 0, []int{5}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			batches := Split(ids(tt.n), tt.size)
			sizes := make([]int, len(batches))
			offset := 0
			for i, b := range batches {
				sizes[i] = len(b.Items)
				assert.Equal(t, i, b.Index)
				assert.Equal(t, offset, b.Offset)
				offset += len(b.Items)
			}
			assert.Equal(t, tt.wantSizes, sizes)
			assert.Equal(t, tt.n, offset)
		})
	}
}

func TestDispatch_AllSucceed(t *testing.T) {
	items := ids(250)
	res := Dispatch(context.Background(), items, self, Options{BatchSize: 100}, okDeliver)

	assert.Equal(t, items, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 250, res.Attempted)
	assert.False(t, res.Canceled)
}

func TestDispatch_EmptyInput(t *testing.T) {
	called := false
	res := Dispatch(context.Background(), nil, self, Options{}, func(context.Context, Batch[string]) (Outcome, error) {
		called = true
		return Outcome{}, nil
	})

	assert.False(t, called)
	assert.Equal(t, 0, res.Batches)
	assert.NotNil(t, res.Succeeded)
	assert.NotNil(t, res.Failed)
}

func TestDispatch_FailedBatchDoesNotStopRun(t *testing.T) {
	items := ids(250)
	var calls atomic.Int32
	deliver := func(_ context.Context, b Batch[string]) (Outcome, error) {
		calls.Add(1)
		if b.Index == 1 {
			return Outcome{}, errors.New("engine returned 500")
		}
		return Outcome{}, nil
	}

	res := Dispatch(context.Background(), items, self, Options{BatchSize: 100}, deliver)

	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, res.Succeeded, 150)
	require.Len(t, res.Failed, 100)
	for _, f := range res.Failed {
		assert.Equal(t, 1, f.Batch)
		assert.Equal(t, "engine returned 500", f.Reason)
	}
	assert.Equal(t, items[100], res.Failed[0].ID)
	assert.Equal(t, append(append([]string{}, items[:100]...), items[200:]...), res.Succeeded)
}

func TestDispatch_PerItemFailures(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	deliver := func(_ context.Context, b Batch[string]) (Outcome, error) {
		return Outcome{Failed: map[string]string{"b": "mapping error", "d": "too large"}}, nil
	}

	res := Dispatch(context.Background(), items, self, Options{BatchSize: 2}, deliver)

	assert.Equal(t, []string{"a", "c"}, res.Succeeded)
	assert.Equal(t, []domain.DeliveryFailure{
		{ID: "b", Batch: 0, Reason: "mapping error"},
		{ID: "d", Batch: 1, Reason: "too large"},
	}, res.Failed)
}

func TestDispatch_TaskUIDsInBatchOrder(t *testing.T) {
	deliver := func(_ context.Context, b Batch[string]) (Outcome, error) {
		if b.Index == 1 {
			return Outcome{}, errors.New("down")
		}
		uid := int64(b.Index + 10)
		return Outcome{TaskUID: &uid}, nil
	}

	res := Dispatch(context.Background(), ids(30), self, Options{BatchSize: 10}, deliver)
	assert.Equal(t, []int64{10, 12}, res.TaskUIDs)
}

func TestDispatch_CanceledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started []int
	deliver := func(_ context.Context, b Batch[string]) (Outcome, error) {
		started = append(started, b.Index)
		if b.Index == 1 {
			cancel()
		}
		return Outcome{}, nil
	}

	res := Dispatch(ctx, ids(50), self, Options{BatchSize: 10}, deliver)

	assert.Equal(t, []int{0, 1}, started)
	assert.True(t, res.Canceled)
	assert.Len(t, res.Succeeded, 20)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 30, res.Skipped)
	assert.Equal(t, 5, res.Batches)
}

func TestDispatch_AlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Dispatch(ctx, ids(5), self, Options{}, func(context.Context, Batch[string]) (Outcome, error) {
		t.Fatal("deliver must not be called")
		return Outcome{}, nil
	})
	assert.True(t, res.Canceled)
	assert.Equal(t, 5, res.Skipped)
	assert.Empty(t, res.Succeeded)
}

func TestDispatch_ParallelMatchesSequential(t *testing.T) {
	items := ids(1000)
	deliver := func(_ context.Context, b Batch[string]) (Outcome, error) {
		// Later batches finish first to shake out ordering bugs.
		time.Sleep(time.Duration(10-b.Index) * time.Millisecond)
		switch b.Index % 3 {
		case 0:
			return Outcome{}, nil
		case 1:
			return Outcome{Failed: map[string]string{b.Items[0]: "rejected"}}, nil
		default:
			return Outcome{}, errors.New("timeout")
		}
	}

	seq := Dispatch(context.Background(), items, self, Options{BatchSize: 100}, deliver)
	par := Dispatch(context.Background(), items, self, Options{BatchSize: 100, Concurrency: 4}, deliver)

	assert.Equal(t, seq.Succeeded, par.Succeeded)
	assert.Equal(t, seq.Failed, par.Failed)
	assert.Equal(t, seq.Batches, par.Batches)
}

func TestDispatch_ConcurrencyIsBounded(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	deliver := func(_ context.Context, b Batch[string]) (Outcome, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return Outcome{}, nil
	}

	Dispatch(context.Background(), ids(100), self, Options{BatchSize: 5, Concurrency: 3}, deliver)
	assert.LessOrEqual(t, peak, 3)
	assert.Greater(t, peak, 0)
}

func TestDispatch_LimiterCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// One batch per hour: only the burst token is available.
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	res := Dispatch(ctx, ids(30), self, Options{BatchSize: 10, Limiter: lim}, okDeliver)

	assert.Len(t, res.Succeeded, 10)
	assert.True(t, res.Canceled)
	assert.Equal(t, 20, res.Skipped)
}
