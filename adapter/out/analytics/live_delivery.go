package analytics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"

	"live_server/core/domain"
	"live_server/core/port/out"
)

// =============================================================================
// Delivery - go-pkgz/pool fan-out to sinks
// =============================================================================

// DeliveryConfig sizes the delivery workers.
type DeliveryConfig struct {
	Workers        int
	BatchSize      int
	WorkerChanSize int
	Buffer         int           // bus subscription buffer
	WriteTimeout   time.Duration // per sink write
}

func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		Workers:        4,
		BatchSize:      10,
		WorkerChanSize: 100,
		Buffer:         4096,
		WriteTimeout:   5 * time.Second,
	}
}

// Delivery subscribes to every event on the bus and writes each one to all
// sinks from a worker group. A failing sink is logged and counted; it never
// holds up the others or the bus.
type Delivery struct {
	bus   *Bus
	sinks []out.EventSink
	cfg   DeliveryConfig
	log   zerolog.Logger

	group *pool.WorkerGroup[domain.Event]
	sub   *Subscription
	done  chan struct{}

	mu      sync.Mutex
	started bool

	written atomic.Int64
	failed  atomic.Int64
}

type sinkWorker struct {
	d *Delivery
}

// Do implements pool.Worker.
func (w *sinkWorker) Do(ctx context.Context, ev domain.Event) error {
	return w.d.deliver(ctx, ev)
}

func NewDelivery(bus *Bus, sinks []out.EventSink, cfg DeliveryConfig, log zerolog.Logger) *Delivery {
	def := DefaultDeliveryConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.WorkerChanSize <= 0 {
		cfg.WorkerChanSize = def.WorkerChanSize
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Delivery{
		bus:   bus,
		sinks: sinks,
		cfg:   cfg,
		log:   log.With().Str("component", "analytics_delivery").Logger(),
	}
}

// Start subscribes to the bus and starts the workers.
func (d *Delivery) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}

	d.group = pool.New[domain.Event](d.cfg.Workers, &sinkWorker{d: d}).
		WithBatchSize(d.cfg.BatchSize).
		WithWorkerChanSize(d.cfg.WorkerChanSize).
		WithContinueOnError()
	if err := d.group.Go(ctx); err != nil {
		return err
	}

	d.sub = d.bus.SubscribeBuffered("", d.cfg.Buffer)
	d.done = make(chan struct{})
	go d.pump()
	d.started = true

	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	d.log.Info().Strs("sinks", names).Int("workers", d.cfg.Workers).Msg("analytics delivery started")
	return nil
}

func (d *Delivery) pump() {
	defer close(d.done)
	for ev := range d.sub.C() {
		d.group.Submit(ev)
	}
}

// Stop unsubscribes, drains what was already received and waits for the
// workers, up to ctx.
func (d *Delivery) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	d.mu.Unlock()

	d.sub.Unsubscribe()
	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := d.group.Close(ctx)
	d.log.Info().
		Int64("written", d.written.Load()).
		Int64("failed", d.failed.Load()).
		Int64("dropped", d.sub.Dropped()).
		Msg("analytics delivery stopped")
	return err
}

// deliver writes ev to every sink. Sink errors are logged and counted here,
// so the worker group never sees them.
func (d *Delivery) deliver(ctx context.Context, ev domain.Event) error {
	batch := []domain.Event{ev}
	for _, s := range d.sinks {
		wctx, cancel := context.WithTimeout(ctx, d.cfg.WriteTimeout)
		err := s.Write(wctx, batch)
		cancel()
		if err != nil {
			d.failed.Add(1)
			d.log.Warn().Err(err).
				Str("sink", s.Name()).
				Int64("event_id", ev.ID).
				Str("event_type", string(ev.Type)).
				Msg("sink write failed")
			continue
		}
		d.written.Add(1)
	}
	return nil
}

// DeliveryStats counts sink writes.
type DeliveryStats struct {
	Written int64 `json:"written"`
	Failed  int64 `json:"failed"`
}

func (d *Delivery) Stats() DeliveryStats {
	return DeliveryStats{Written: d.written.Load(), Failed: d.failed.Load()}
}
