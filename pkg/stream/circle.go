package stream

import (
	"math"
	"sync"
	"time"
)

// CircleWalk moves around a circle at a constant speed, in units per second.
type CircleWalk struct {
	mu     sync.Mutex
	radius float64
	speed  float64
	angle  float64
}

func NewCircleWalk(radius, speed float64) *CircleWalk {
	return &CircleWalk{radius: radius, speed: speed}
}

func (c *CircleWalk) Next(dt time.Duration) (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.radius > 0 {
		c.angle = math.Mod(c.angle+c.speed*dt.Seconds()/c.radius, 2*math.Pi)
	}
	return float32(c.radius * math.Cos(c.angle)), float32(c.radius * math.Sin(c.angle))
}
