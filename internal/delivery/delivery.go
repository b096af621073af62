package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smtpevent/internal/mail"
	"github.com/OliverSchlueter/smtpevent/internal/metrics"
)

// Deliverer consumes inbound message events.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, msg *mail.Message) error
}

// Dispatcher hands messages to its deliverers on a fixed set of workers.
// Emit never blocks the SMTP session: events that do not fit into the queue
// are dropped.
type Dispatcher struct {
	deliverers []Deliverer
	workers    int
	timeout    time.Duration
	metrics    *metrics.Metrics

	queue   chan *mail.Message
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

type Configuration struct {
	Deliverers []Deliverer
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	Metrics    *metrics.Metrics
}

func NewDispatcher(config Configuration) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 128
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Dispatcher{
		deliverers: config.Deliverers,
		workers:    config.Workers,
		timeout:    config.Timeout,
		metrics:    config.Metrics,
		queue:      make(chan *mail.Message, config.QueueSize),
	}
}

// Start launches the workers. Deliveries in flight are cancelled with ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for msg := range d.queue {
				d.deliver(ctx, msg)
			}
		}()
	}

	slog.Info("Delivery dispatcher started", "workers", d.workers, "deliverers", len(d.deliverers))
}

// Emit queues msg for delivery.
func (d *Dispatcher) Emit(msg *mail.Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		slog.Warn("Dropped message event, dispatcher stopped", "message_id", msg.ID)
		d.metrics.Dropped()
		return
	}

	select {
	case d.queue <- msg:
	default:
		slog.Warn("Dropped message event, delivery queue full", "message_id", msg.ID, "queue_size", cap(d.queue))
		d.metrics.Dropped()
	}
}

// Stop rejects further events and waits until the queued ones are delivered.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	slog.Info("Delivery dispatcher stopped")
}

func (d *Dispatcher) deliver(ctx context.Context, msg *mail.Message) {
	for _, deliverer := range d.deliverers {
		dctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := deliverer.Deliver(dctx, msg)
		cancel()

		d.metrics.Delivered(deliverer.Name(), err)
		if err != nil {
			slog.Warn("Failed to deliver message", "deliverer", deliverer.Name(), "message_id", msg.ID, sloki.WrapError(err))
		}
	}
}
