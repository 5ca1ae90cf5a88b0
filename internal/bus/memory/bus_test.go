package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-sync/internal/domain"
)

func note(id string) domain.ChangeNotification {
	return domain.ChangeNotification{Name: domain.DefaultChangeEvent, Data: domain.ChangeData{ID: id}}
}

func TestEmit_RecordsInOrder(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Emit(context.Background(), []domain.ChangeNotification{note("a"), note("b")}))
	require.NoError(t, b.Emit(context.Background(), []domain.ChangeNotification{note("c")}))

	got := b.Accepted()
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[2].Data.ID)
	assert.Equal(t, 2, b.Emits())
}

func TestEmit_KeepsOnlyRecentHistory(t *testing.T) {
	b := New(2)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, b.Emit(context.Background(), []domain.ChangeNotification{note(id)}))
	}

	got := b.Accepted()
	require.Len(t, got, 2)
	assert.Equal(t, "e", got[0].Data.ID)
	assert.Equal(t, "f", got[1].Data.ID)
	assert.LessOrEqual(t, len(b.accepted), 4)
	assert.Equal(t, 6, b.Emits())
}

func TestEmit_Fail(t *testing.T) {
	b := New(0)
	b.Fail = func([]domain.ChangeNotification) error { return errors.New("broker down") }
	assert.EqualError(t, b.Emit(context.Background(), []domain.ChangeNotification{note("a")}), "broker down")
	assert.Empty(t, b.Accepted())
}

func TestRun_DeliversToSubscriber(t *testing.T) {
	b := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx, func(_ context.Context, n domain.ChangeNotification) error {
			got <- n.Data.ID
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.subscribe
	}, time.Second, time.Millisecond)

	require.NoError(t, b.Emit(context.Background(), []domain.ChangeNotification{note("a"), note("b")}))
	assert.Equal(t, "a", <-got)
	assert.Equal(t, "b", <-got)

	cancel()
	<-done
}

func TestEmit_QueueFull(t *testing.T) {
	b := New(1)
	b.subscribe = true
	err := b.Emit(context.Background(), []domain.ChangeNotification{note("a"), note("b")})
	assert.ErrorIs(t, err, ErrQueueFull)
}
