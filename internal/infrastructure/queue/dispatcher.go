package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/medclinic/booking-portal/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher runs session bootstraps on a fixed set of workers, sharded by
// browser id so bootstraps for the same browser never run concurrently and
// the backend sees at most len(workers) revalidations at a time.
//
// Enqueue never blocks. A job whose shard is full, or that arrives after the
// workers stopped, runs on the caller's goroutine instead.
type Dispatcher struct {
	workers []chan ports.BootstrapJob
	log     zerolog.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.BootstrapJob, numWorkers),
		log:     log.With().Str("component", "bootstrap_dispatcher").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.BootstrapJob, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands a job to the worker owning its browser id. Jobs enqueued
// before Start wait in the shard buffer.
func (d *Dispatcher) Enqueue(job ports.BootstrapJob) {
	d.mu.RLock()
	ctx := d.ctx
	d.mu.RUnlock()

	idx := d.shardIndex(job.BrowserID)
	if ctx == nil || ctx.Err() == nil {
		select {
		case d.workers[idx] <- job:
			return
		default:
		}
		d.log.Warn().Str("browser_id", job.BrowserID).Int("worker_id", idx).
			Msg("bootstrap shard full, running inline")
	} else {
		d.log.Warn().Str("browser_id", job.BrowserID).
			Msg("dispatcher stopped, running bootstrap inline")
	}

	base := context.Background()
	if ctx != nil {
		base = context.WithoutCancel(ctx)
	}
	d.run(base, -1, job)
}

// Pending returns the number of queued jobs per worker.
func (d *Dispatcher) Pending() []int {
	out := make([]int, len(d.workers))
	for i, ch := range d.workers {
		out[i] = len(ch)
	}
	return out
}

// shardIndex maps a browser id deterministically to a worker index.
func (d *Dispatcher) shardIndex(browserID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(browserID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.BootstrapJob) {
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx), id, ch)
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			d.run(ctx, id, job)
		}
	}
}

// drain settles the jobs still buffered when the worker stops, so no session
// is left pending.
func (d *Dispatcher) drain(ctx context.Context, id int, ch <-chan ports.BootstrapJob) {
	for {
		select {
		case job, ok := <-ch:
			if !ok {
				return
			}
			d.run(ctx, id, job)
		default:
			return
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, id int, job ports.BootstrapJob) {
	if err := job.Session.Bootstrap(ctx); err != nil {
		d.log.Error().Err(err).
			Str("browser_id", job.BrowserID).
			Int("worker_id", id).
			Msg("session bootstrap failed")
	}
}

// Inline runs every job synchronously on the caller's goroutine. It stands
// in for the Dispatcher where ordering on the request path matters more than
// latency, such as tests and single-user tooling.
type Inline struct {
	Ctx context.Context
}

// Enqueue bootstraps job immediately.
func (i Inline) Enqueue(job ports.BootstrapJob) {
	ctx := i.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_ = job.Session.Bootstrap(ctx)
}
