package analytics

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fentz26/taskflow/internal/models"
	"github.com/fentz26/taskflow/internal/observability"
)

// DefaultPollInterval is used when Start is given a non-positive interval.
const DefaultPollInterval = 30 * time.Second

// RealTimeFetcher loads the live stats from the backend.
type RealTimeFetcher interface {
	RealTimeStats(ctx context.Context) (*models.RealTimeStats, error)
}

// Poller runs independent live-stats subscriptions.
type Poller struct {
	fetcher RealTimeFetcher
	metrics *observability.Metrics
	logger  *log.Logger

	mu      sync.Mutex
	nextID  int
	cancels map[int]context.CancelFunc
	wg      sync.WaitGroup
}

// NewPoller creates a poller over f. m and logger may be nil.
func NewPoller(f RealTimeFetcher, m *observability.Metrics, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		fetcher: f,
		metrics: m,
		logger:  logger,
		cancels: make(map[int]context.CancelFunc),
	}
}

// Start fetches immediately and then every interval, handing each result
// to callback. A failed tick is logged and the subscription continues.
// The returned cancel stops the subscription; once it returns no new tick
// starts. It is safe to call more than once and from inside callback.
func (p *Poller) Start(callback func(*models.RealTimeStats), interval time.Duration) (cancel func()) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, stop := context.WithCancel(context.Background())

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.cancels[id] = stop
	p.mu.Unlock()
	p.metrics.PollSubscriptions(1)

	p.wg.Add(1)
	go p.loop(ctx, id, callback, interval)

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			p.remove(id)
		})
	}
}

// Active reports the number of live subscriptions.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cancels)
}

// Close cancels every subscription and waits for their loops to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	ids := make([]int, 0, len(p.cancels))
	for id, stop := range p.cancels {
		stop()
		ids = append(ids, id)
	}
	p.mu.Unlock()
	for _, id := range ids {
		p.remove(id)
	}
	p.wg.Wait()
}

func (p *Poller) remove(id int) {
	p.mu.Lock()
	_, ok := p.cancels[id]
	delete(p.cancels, id)
	p.mu.Unlock()
	if ok {
		p.metrics.PollSubscriptions(-1)
	}
}

func (p *Poller) loop(ctx context.Context, id int, callback func(*models.RealTimeStats), interval time.Duration) {
	defer p.wg.Done()

	p.tick(ctx, callback)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, callback)
		}
	}
}

func (p *Poller) tick(ctx context.Context, callback func(*models.RealTimeStats)) {
	// select picks randomly when both channels are ready.
	if ctx.Err() != nil {
		return
	}
	stats, err := p.fetcher.RealTimeStats(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.PollTick("error")
		p.logger.Printf("Error fetching real-time stats: %v", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	p.metrics.PollTick("ok")
	callback(stats)
}
