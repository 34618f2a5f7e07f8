package simulator

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultMaxSeries bounds how many tenant/metric series a feed keeps.
const DefaultMaxSeries = 1024

// ErrUnknownMetric is returned for metrics that have no configured generator.
var ErrUnknownMetric = errors.New("simulator: unknown metric")

// Metric describes one simulated series.
type Metric struct {
	Name  string  `yaml:"name" json:"name"`
	Start float64 `yaml:"start" json:"start"`
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
	Step  float64 `yaml:"step" json:"step"`
}

// DefaultMetrics mirror the demo dashboards: pool liquidity and incident load.
var DefaultMetrics = []Metric{
	{Name: "tvl", Start: 1_000_000, Min: 800_000, Max: 1_200_000, Step: 25_000},
	{Name: "volume", Start: 250_000, Min: 50_000, Max: 500_000, Step: 40_000},
	{Name: "threat_score", Start: 40, Min: 0, Max: 100, Step: 8},
	{Name: "active_incidents", Start: 3, Min: 0, Max: 25, Step: 2},
}

type series struct {
	walk   *RandomWalk
	window *Window
}

// Feed advances every (tenant, metric) series on each tick. Series are
// created on first read and seeded from their key, so a tenant always sees
// the same sequence for the same seed. At most maxSeries series are kept; the
// least recently read one is dropped and restarts from Start if read again.
type Feed struct {
	interval time.Duration
	window   int
	seed     int64
	max      int
	metrics  map[string]Metric
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	series   *lru.Cache[string, *series]
	lastTick atomic.Int64
}

type FeedOption func(*Feed)

func WithInterval(d time.Duration) FeedOption { return func(f *Feed) { f.interval = d } }
func WithWindow(n int) FeedOption             { return func(f *Feed) { f.window = n } }
func WithSeed(seed int64) FeedOption          { return func(f *Feed) { f.seed = seed } }
func WithMaxSeries(n int) FeedOption          { return func(f *Feed) { f.max = n } }
func WithLogger(l *zap.Logger) FeedOption     { return func(f *Feed) { f.logger = l } }
func WithNow(now func() time.Time) FeedOption { return func(f *Feed) { f.now = now } }

func NewFeed(metrics []Metric, opts ...FeedOption) *Feed {
	if len(metrics) == 0 {
		metrics = DefaultMetrics
	}
	f := &Feed{
		interval: 2 * time.Second,
		window:   DefaultWindow,
		max:      DefaultMaxSeries,
		metrics:  make(map[string]Metric, len(metrics)),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, m := range metrics {
		f.metrics[m.Name] = m
	}
	for _, o := range opts {
		o(f)
	}
	if f.max <= 0 {
		f.max = DefaultMaxSeries
	}
	// lru.New only fails for a non-positive size
	f.series, _ = lru.New[string, *series](f.max)
	return f
}

// Metrics lists the configured metric names.
func (f *Feed) Metrics() []string {
	out := make([]string, 0, len(f.metrics))
	for name := range f.metrics {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Window returns the sliding window for tenant/metric, seeding it with one
// sample when new.
func (f *Feed) Window(tenant, metric string) ([]Point, error) {
	m, ok := f.metrics[metric]
	if !ok {
		return nil, ErrUnknownMetric
	}
	key := tenant + "/" + metric

	f.mu.Lock()
	s, ok := f.series.Get(key)
	if !ok {
		s = &series{
			walk:   NewRandomWalk(f.seed^keySeed(key), m.Start, m.Min, m.Max, m.Step),
			window: NewWindow(f.window),
		}
		s.window.Push(Point{At: f.now(), Value: s.walk.Value()})
		f.series.Add(key, s)
	}
	f.mu.Unlock()

	return s.window.Points(), nil
}

// Tick advances every known series once.
func (f *Feed) Tick() {
	now := f.now()
	for _, s := range f.series.Values() {
		s.window.Push(Point{At: now, Value: s.walk.Next()})
	}
	f.lastTick.Store(now.UnixNano())
}

// LastTick returns when Tick last ran, or the zero time if it never did.
func (f *Feed) LastTick() time.Time {
	n := f.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Len reports how many series are held.
func (f *Feed) Len() int { return f.series.Len() }

// Run ticks until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	t := time.NewTicker(f.interval)
	defer t.Stop()
	f.logger.Info("telemetry simulator started",
		zap.Duration("interval", f.interval),
		zap.Strings("metrics", f.Metrics()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			f.Tick()
		}
	}
}

func keySeed(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
