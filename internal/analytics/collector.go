package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher sends a batch of values under one key. *kafka.Producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key string, values ...any) error
}

// Collector buffers events and publishes them in batches, when the buffer
// fills or the flush interval elapses. Track never blocks; once the buffer
// holds maxBuffered events new ones are dropped.
type Collector struct {
	publisher     Publisher
	mu            sync.Mutex
	buffer        []Event
	batchSize     int
	maxBuffered   int
	flushInterval time.Duration
	kick          chan struct{}
	done          chan struct{}
	dropped       int64
	logger        *slog.Logger
}

func NewCollector(publisher Publisher, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		buffer:        make([]Event, 0, batchSize),
		batchSize:     batchSize,
		maxBuffered:   batchSize * 50,
		flushInterval: flushInterval,
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		logger:        slog.Default().With("component", "analytics-collector"),
	}
}

// Start runs the flush loop until ctx is cancelled, then flushes what is
// left with a short deadline.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-c.kick:
				c.flush(ctx)
			case <-ctx.Done():
				fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(fctx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "batch_size", c.batchSize, "flush_interval", c.flushInterval)
}

func (c *Collector) Track(e Event) {
	c.mu.Lock()
	if len(c.buffer) >= c.maxBuffered {
		c.dropped++
		c.mu.Unlock()
		return
	}
	c.buffer = append(c.buffer, e)
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// Close waits for the final flush after the Start context is cancelled.
func (c *Collector) Close() {
	<-c.done
}

// Pending returns the number of buffered events.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Dropped returns how many events were refused because the buffer was full.
func (c *Collector) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]Event, 0, c.batchSize)
	c.mu.Unlock()

	values := make([]any, len(batch))
	for i := range batch {
		values[i] = batch[i]
	}
	if err := c.publisher.Publish(ctx, "analytics", values...); err != nil {
		c.logger.Error("analytics flush failed", "events", len(batch), "error", err)
		c.mu.Lock()
		room := c.maxBuffered - len(c.buffer)
		if room < len(batch) {
			c.dropped += int64(len(batch) - room)
			batch = batch[:max(room, 0)]
		}
		c.buffer = append(batch, c.buffer...)
		c.mu.Unlock()
		return
	}
	c.logger.Debug("analytics flushed", "events", len(batch))
}
