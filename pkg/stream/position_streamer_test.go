package stream

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSender struct {
	mu      sync.Mutex
	open    bool
	sendErr error
	sent    [][2]float32
}

func (m *mockSender) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *mockSender) SendPosition(x, y float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, [2]float32{x, y})
	return nil
}

func (m *mockSender) setOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = open
}

func (m *mockSender) getSent() [][2]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]float32(nil), m.sent...)
}

func constantSource(x, y float32) PositionSource {
	return PositionSourceFunc(func(time.Duration) (float32, float32) { return x, y })
}

func TestTickSkipsWhileNotOpen(t *testing.T) {
	sender := &mockSender{}
	ticks := 0
	s := CreatePositionStreamer(PositionStreamerParams{
		Sender: sender,
		Source: constantSource(1, 2),
		OnTick: func() { ticks++ },
		Logger: zap.NewNop(),
	})

	s.tick(time.Millisecond)
	s.tick(time.Millisecond)

	assert.Empty(t, sender.getSent())
	assert.Equal(t, uint64(2), s.Skipped())
	assert.Equal(t, 2, ticks)

	sender.setOpen(true)
	s.tick(time.Millisecond)

	assert.Equal(t, [][2]float32{{1, 2}}, sender.getSent())
	assert.Equal(t, uint64(1), s.Sent())
}

func TestTickCountsFailures(t *testing.T) {
	sender := &mockSender{open: true, sendErr: errors.New("boom")}
	s := CreatePositionStreamer(PositionStreamerParams{
		Sender: sender,
		Source: constantSource(0, 0),
		Logger: zap.NewNop(),
	})

	s.tick(time.Millisecond)

	assert.Equal(t, uint64(1), s.Failed())
	assert.Equal(t, uint64(0), s.Sent())
}

func TestRunSendsPeriodicallyUntilCancelled(t *testing.T) {
	sender := &mockSender{open: true}
	s := CreatePositionStreamer(PositionStreamerParams{
		Sender:       sender,
		Source:       constantSource(5, 6),
		TickInterval: time.Millisecond,
		Logger:       zap.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(sender.getSent()) >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	for _, p := range sender.getSent() {
		assert.Equal(t, [2]float32{5, 6}, p)
	}
}

func TestDefaultTickInterval(t *testing.T) {
	s := CreatePositionStreamer(PositionStreamerParams{Sender: &mockSender{}, Source: constantSource(0, 0), Logger: zap.NewNop()})
	assert.Equal(t, time.Second/64, s.params.TickInterval)
}

func TestCircleWalkStaysOnCircle(t *testing.T) {
	walk := NewCircleWalk(100, 500)

	x, y := walk.Next(0)
	assert.InDelta(t, 100, x, 1e-3)
	assert.InDelta(t, 0, y, 1e-3)

	for i := 0; i < 100; i++ {
		x, y = walk.Next(DefaultTickInterval)
		r := math.Hypot(float64(x), float64(y))
		require.InDelta(t, 100, r, 1e-2)
	}
}
