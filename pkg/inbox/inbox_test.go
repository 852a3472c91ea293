package inbox

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedPreservesArrivalOrder(t *testing.T) {
	buf := NewBuffered(0)

	buf.Push("one")
	buf.Push("two")
	buf.Push("three")

	require.Equal(t, []string{"one", "two", "three"}, buf.Drain())
}

func TestBufferedDrainEmptiesExactlyOnce(t *testing.T) {
	buf := NewBuffered(0)
	buf.Push("a")
	buf.Push("b")

	require.Equal(t, []string{"a", "b"}, buf.Drain())
	require.Empty(t, buf.Drain())
	require.Equal(t, 0, buf.Len())

	buf.Push("c")
	require.Equal(t, []string{"c"}, buf.Drain())
}

func TestBufferedCapacityDropsOldest(t *testing.T) {
	buf := NewBuffered(2)

	buf.Push("a")
	buf.Push("b")
	buf.Push("c")

	assert.Equal(t, uint64(1), buf.Dropped())
	assert.Equal(t, []string{"b", "c"}, buf.Drain())
}

func TestBufferedConcurrentPushKeepsEveryMessage(t *testing.T) {
	buf := NewBuffered(0)

	wg := sync.WaitGroup{}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				buf.Push(fmt.Sprintf("%d-%d", worker, j))
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, buf.Drain(), 200)
}

func TestLatestEmptyBeforeFirstMessage(t *testing.T) {
	l := NewLatest()

	msg, ok := l.Latest()
	assert.False(t, ok)
	assert.Equal(t, "", msg)
}

func TestLatestIsOverwrittenNotAppended(t *testing.T) {
	l := NewLatest()

	l.Push("first")
	msg, ok := l.Latest()
	require.True(t, ok)
	require.Equal(t, "first", msg)

	l.Push("second")
	l.Push("third")

	msg, ok = l.Latest()
	require.True(t, ok)
	require.Equal(t, "third", msg)
	require.Equal(t, uint64(3), l.Received())

	// reading does not clear
	msg, _ = l.Latest()
	require.Equal(t, "third", msg)
}
