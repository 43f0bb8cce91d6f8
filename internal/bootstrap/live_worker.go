package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live_server/internal/stream"
	"live_server/pkg/ratelimit"
)

// Worker runs the background side of the engine: the Redis comment
// consumer and the periodic session metrics report.
type Worker struct {
	deps     *Dependencies
	consumer *stream.Consumer
	log      zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker builds the worker. The comment consumer is only created when
// Redis is configured.
func NewWorker(deps *Dependencies) *Worker {
	w := &Worker{deps: deps, log: deps.Log.With().Str("component", "worker").Logger()}
	if deps.Redis != nil {
		cfg := deps.Config
		rs := stream.NewRedisStream(deps.Redis, cfg.IngestGroup, deps.Log)
		w.consumer = stream.NewConsumer(rs, deps.Manager,
			ratelimit.NewKeyedLimiter(cfg.IngestRPS, cfg.IngestBurst),
			stream.ConsumerConfig{
				Stream:  cfg.IngestStream,
				Name:    cfg.IngestConsumer,
				Workers: 2,
				Count:   int64(cfg.IngestBatchSize),
				Block:   cfg.IngestBlock,
			}, deps.Log)
	}
	return w
}

func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	if w.consumer != nil {
		if err := w.consumer.Start(ctx); err != nil {
			w.cancel()
			return err
		}
	} else {
		w.log.Warn().Msg("REDIS_URL not set, comment stream consumer disabled")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.deps.Manager.ReportMetrics(ctx, w.deps.Config.MetricsInterval)
	}()

	w.log.Info().Msg("worker started")
	return nil
}

// Stop cancels the consumer and waits for in-progress messages, up to
// timeout.
func (w *Worker) Stop(timeout time.Duration) {
	if w.cancel == nil {
		return
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		if w.consumer != nil {
			w.consumer.Wait()
		}
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ev := w.log.Info()
		if w.consumer != nil {
			st := w.consumer.Stats()
			ev = ev.Int64("ingested", st.Ingested).Int64("rejected", st.Rejected).Int64("invalid", st.Invalid)
		}
		ev.Msg("worker stopped")
	case <-time.After(timeout):
		w.log.Warn().Msg("worker stop timed out")
	}
}
