// Package simulator generates placeholder telemetry for demo dashboards.
// None of it is real data.
package simulator

import (
	"math/rand"
	"sync"
	"time"
)

// RandomWalk is a bounded random walk: each step moves the value by at most
// Step in either direction and clamps it to [Min, Max].
type RandomWalk struct {
	mu    sync.Mutex
	rng   *rand.Rand
	value float64
	min   float64
	max   float64
	step  float64
}

func NewRandomWalk(seed int64, start, min, max, step float64) *RandomWalk {
	if min > max {
		min, max = max, min
	}
	w := &RandomWalk{rng: rand.New(rand.NewSource(seed)), min: min, max: max, step: step}
	w.value = w.clamp(start)
	return w
}

// Next advances the walk and returns the new value.
func (w *RandomWalk) Next() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value = w.clamp(w.value + (w.rng.Float64()*2-1)*w.step)
	return w.value
}

func (w *RandomWalk) Value() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

func (w *RandomWalk) clamp(v float64) float64 {
	if v < w.min {
		return w.min
	}
	if v > w.max {
		return w.max
	}
	return v
}

// DefaultWindow is the number of points a dashboard chart keeps.
const DefaultWindow = 20

// Point is one sample.
type Point struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// Window is a fixed-size sliding window; pushing past capacity drops the oldest.
type Window struct {
	mu     sync.RWMutex
	cap    int
	points []Point
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Window{cap: capacity, points: make([]Point, 0, capacity)}
}

func (w *Window) Push(p Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.points) == w.cap {
		copy(w.points, w.points[1:])
		w.points = w.points[:w.cap-1]
	}
	w.points = append(w.points, p)
}

// Points returns a copy, oldest first.
func (w *Window) Points() []Point {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Point(nil), w.points...)
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.points)
}

func (w *Window) Cap() int { return w.cap }
