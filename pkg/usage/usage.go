// Package usage records upstream commerce-backend calls as metrics and,
// when a database is configured, as rows in usage_events.
package usage

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"storefront/internal/medusa"
	"storefront/pkg/middleware"
)

var (
	upstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of commerce backend calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status_class"})

	CartMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "cart_mutations_total",
		Help:      "Cart changes by kind.",
	}, []string{"kind"})

	usageDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "usage_events_dropped_total",
		Help:      "Usage rows dropped because the write queue was full.",
	})

	OrdersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "orders_placed_total",
		Help:      "Completed checkouts by outcome.",
	}, []string{"outcome"})
)

// MustRegister registers the collectors on reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(upstreamDuration, CartMutations, OrdersPlaced, usageDropped)
}

// StatusClass buckets an HTTP status for metric labels.
func StatusClass(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

const (
	queueSize  = 1024
	batchSize  = 100
	flushEvery = time.Second
)

type event struct {
	medusa.Call
	RequestID string
}

// Recorder implements medusa.Observer. Calls are counted inline; the
// usage_events rows are queued and written in batches by one goroutine so
// the database never sits on the page's request path. When the queue is
// full, rows are dropped and counted.
type Recorder struct {
	log    *zap.SugaredLogger
	write  func(context.Context, []event) error
	events chan event
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewRecorder returns a recorder writing to pool. With a nil pool it only
// feeds metrics.
func NewRecorder(pool *pgxpool.Pool, log *zap.SugaredLogger) *Recorder {
	if pool == nil {
		return &Recorder{log: log}
	}
	return newRecorder(log, queueSize, insertEvents(pool))
}

func newRecorder(log *zap.SugaredLogger, size int, write func(context.Context, []event) error) *Recorder {
	r := &Recorder{
		log:    log,
		write:  write,
		events: make(chan event, size),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) ObserveCall(ctx context.Context, c medusa.Call) {
	upstreamDuration.WithLabelValues(c.Operation, StatusClass(c.Status)).Observe(c.Duration.Seconds())
	if r.events == nil || c.StoreID == "" {
		return
	}
	select {
	case r.events <- event{Call: c, RequestID: middleware.RequestIDFrom(ctx)}:
	default:
		usageDropped.Inc()
	}
}

// Close writes what is still queued and stops the writer.
func (r *Recorder) Close(ctx context.Context) error {
	if r.events == nil {
		return nil
	}
	r.once.Do(func() { close(r.stop) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	tick := time.NewTicker(flushEvery)
	defer tick.Stop()
	batch := make([]event, 0, batchSize)
	for {
		select {
		case ev := <-r.events:
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				batch = r.flush(batch)
			}
		case <-tick.C:
			batch = r.flush(batch)
		case <-r.stop:
			for {
				select {
				case ev := <-r.events:
					batch = append(batch, ev)
					if len(batch) >= batchSize {
						batch = r.flush(batch)
					}
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(batch []event) []event {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.write(ctx, batch); err != nil {
		r.log.Warnw("usage insert", "err", err, "events", len(batch))
	}
	return batch[:0]
}

func insertEvents(pool *pgxpool.Pool) func(context.Context, []event) error {
	return func(ctx context.Context, evs []event) error {
		b := &pgx.Batch{}
		for _, e := range evs {
			b.Queue(`
				INSERT INTO usage_events(store_id, operation, method, path, request_id, status_code, duration_ms, started_at, finished_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, e.StoreID, e.Operation, e.Method, e.Path, e.RequestID, e.Status, int(e.Duration.Milliseconds()),
				e.StartedAt.UTC(), e.StartedAt.Add(e.Duration).UTC())
		}
		return pool.SendBatch(ctx, b).Close()
	}
}

var _ medusa.Observer = (*Recorder)(nil)
