package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bytedge/pkg/edgetypes"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func turn(n int) edgetypes.Turn {
	return edgetypes.Turn{
		UserText:      fmt.Sprintf("q%d", n),
		AssistantText: fmt.Sprintf("a%d", n),
		Timestamp:     time.Date(2025, 1, 1, 0, 0, n, 0, time.UTC),
		AgentID:       "brake",
	}
}

func TestNewMemoryStore_DefaultRetention(t *testing.T) {
	assert.Equal(t, edgetypes.DefaultRetentionLimit, NewMemoryStore(0).Retention())
	assert.Equal(t, 7, NewMemoryStore(7).Retention())
}

func TestMemoryStore_GetUnknownSession(t *testing.T) {
	s := NewMemoryStore(0)
	turns := s.Get("missing")
	assert.NotNil(t, turns)
	assert.Empty(t, turns)
	assert.False(t, s.Exists("missing"))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_AppendPreservesOrder(t *testing.T) {
	s := NewMemoryStore(0)
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Append("a", turn(i)))
	}

	got := s.Get("a")
	require.Len(t, got, 3)
	for i, tr := range got {
		assert.Equal(t, fmt.Sprintf("q%d", i+1), tr.UserText)
	}
	assert.True(t, s.Exists("a"))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_RetentionEvictsOldestFirst(t *testing.T) {
	s := NewMemoryStore(edgetypes.DefaultRetentionLimit)
	for i := 1; i <= 53; i++ {
		require.NoError(t, s.Append("a", turn(i)))
		assert.LessOrEqual(t, len(s.Get("a")), edgetypes.DefaultRetentionLimit)
	}

	got := s.Get("a")
	require.Len(t, got, edgetypes.DefaultRetentionLimit)
	assert.Equal(t, "q4", got[0].UserText)
	assert.Equal(t, "q53", got[len(got)-1].UserText)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(0)
	require.NoError(t, s.Append("a", turn(1)))

	got := s.Get("a")
	got[0].UserText = "mutated"

	assert.Equal(t, "q1", s.Get("a")[0].UserText)
}

func TestMemoryStore_SessionsAreIsolated(t *testing.T) {
	s := NewMemoryStore(0)
	require.NoError(t, s.Append("a", turn(1)))
	require.NoError(t, s.Append("b", turn(2)))

	assert.Equal(t, "q1", s.Get("a")[0].UserText)
	assert.Equal(t, "q2", s.Get("b")[0].UserText)
	assert.Len(t, s.Get("a"), 1)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_AcquireIsExclusivePerKey(t *testing.T) {
	s := NewMemoryStore(0)

	release, err := s.Acquire(context.Background(), "a")
	require.NoError(t, err)

	// A different key is not blocked.
	releaseB, err := s.Acquire(context.Background(), "b")
	require.NoError(t, err)
	releaseB()

	// The same key blocks until released.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Acquire(ctx, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second call is a no-op

	again, err := s.Acquire(context.Background(), "a")
	require.NoError(t, err)
	again()

	s.mu.Lock()
	assert.Empty(t, s.locks, "idle key locks should be forgotten")
	s.mu.Unlock()
}

func TestMemoryStore_AcquireDoesNotCreateSession(t *testing.T) {
	s := NewMemoryStore(0)
	release, err := s.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()

	assert.False(t, s.Exists("a"))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_ConcurrentAppendsUnderLock(t *testing.T) {
	s := NewMemoryStore(0)
	const workers = 40

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			release, err := s.Acquire(context.Background(), "shared")
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			before := len(s.Get("shared"))
			assert.NoError(t, s.Append("shared", turn(n)))
			assert.Equal(t, before+1, len(s.Get("shared")))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Get("shared"), workers)
}
