package stream

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultTickInterval matches a 64 Hz fixed update loop.
const DefaultTickInterval = time.Second / 64

type PositionSender interface {
	SendPosition(x, y float32) error
	IsOpen() bool
}

// PositionSource reports the current position given the time elapsed since
// the previous tick.
type PositionSource interface {
	Next(dt time.Duration) (x, y float32)
}

type PositionSourceFunc func(dt time.Duration) (x, y float32)

func (f PositionSourceFunc) Next(dt time.Duration) (float32, float32) {
	return f(dt)
}

type PositionStreamerParams struct {
	Sender PositionSender
	Source PositionSource

	TickInterval time.Duration

	// OnTick runs after every tick, sent or skipped. Optional.
	OnTick func()

	Logger *zap.Logger
}

type PositionStreamer struct {
	params PositionStreamerParams

	sent    atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64

	log *zap.Logger
}

func CreatePositionStreamer(params PositionStreamerParams) *PositionStreamer {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if params.TickInterval <= 0 {
		params.TickInterval = DefaultTickInterval
	}

	return &PositionStreamer{
		params: params,
		log:    logger.With(zap.String("handler", "PositionStreamer")),
	}
}

func (s *PositionStreamer) Sent() uint64    { return s.sent.Load() }
func (s *PositionStreamer) Skipped() uint64 { return s.skipped.Load() }
func (s *PositionStreamer) Failed() uint64  { return s.failed.Load() }

// Run ticks until ctx is cancelled. Positions are only sent while the sender
// reports open; ticks before that are counted as skipped.
func (s *PositionStreamer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.params.TickInterval)
	defer ticker.Stop()

	s.log.Info("Starting position stream", zap.Duration("tick", s.params.TickInterval))
	defer s.log.Info("Stopping position stream",
		zap.Uint64("sent", s.Sent()),
		zap.Uint64("skipped", s.Skipped()),
		zap.Uint64("failed", s.Failed()))

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now.Sub(last))
			last = now
		}
	}
}

func (s *PositionStreamer) tick(dt time.Duration) {
	x, y := s.params.Source.Next(dt)

	if !s.params.Sender.IsOpen() {
		s.skipped.Add(1)
	} else if err := s.params.Sender.SendPosition(x, y); err != nil {
		s.failed.Add(1)
		s.log.Warn("Failed to send position", zap.Error(err))
	} else {
		s.sent.Add(1)
	}

	if s.params.OnTick != nil {
		s.params.OnTick()
	}
}
