package main

import (
	"context"
	"time"

	"github.com/jason-s-yu/matchledger/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// popTimeout bounds each blocking pop so shutdown and timed flushes are noticed.
	popTimeout = time.Second
	// maxPendingBatches caps how many batches are held while the sink fails.
	// Past it the historian stops popping and events wait in the queue.
	maxPendingBatches = 10
	maxRetryDelay     = time.Minute
)

// eventSource blocks up to timeout for the next event; (nil, nil) means none arrived.
type eventSource func(ctx context.Context, timeout time.Duration) (*models.LedgerEvent, error)

// eventSink persists a batch atomically.
type eventSink func(ctx context.Context, events []models.LedgerEvent) error

// Historian drains ledger events from the queue and archives them in batches.
type Historian struct {
	pop        eventSource
	sink       eventSink
	batchSize  int
	flushDelay time.Duration
	log        logrus.FieldLogger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)

	batch     []models.LedgerEvent
	lastFlush time.Time
	failures  int
	retryAt   time.Time
}

func NewHistorian(pop eventSource, sink eventSink, batchSize int, flushDelay time.Duration, log logrus.FieldLogger) *Historian {
	return &Historian{
		pop:        pop,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		log:        log,
		now:        time.Now,
		sleep:      sleepCtx,
		batch:      make([]models.LedgerEvent, 0, batchSize),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run pops until ctx is cancelled, then flushes what is left.
func (h *Historian) Run(ctx context.Context) {
	h.lastFlush = h.now()
	for {
		if ctx.Err() != nil {
			h.flush(context.WithoutCancel(ctx))
			return
		}

		if len(h.batch) >= h.batchSize*maxPendingBatches {
			if wait := h.retryAt.Sub(h.now()); wait > 0 {
				h.sleep(ctx, wait)
			}
			if ctx.Err() == nil {
				h.flush(ctx)
			}
			continue
		}

		ev, err := h.pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() == nil {
				h.log.Errorf("pop: %v", err)
			}
			continue
		}
		if ev != nil {
			h.batch = append(h.batch, *ev)
		}

		if h.due() {
			h.flush(ctx)
		}
	}
}

// due reports whether the batch is full or old enough, and no retry backoff
// is pending.
func (h *Historian) due() bool {
	now := h.now()
	if now.Before(h.retryAt) {
		return false
	}
	return len(h.batch) >= h.batchSize || now.Sub(h.lastFlush) >= h.flushDelay
}

// flush writes the current batch in one transaction. A failed batch is kept
// and retried after a doubling delay.
func (h *Historian) flush(ctx context.Context) {
	h.lastFlush = h.now()
	if len(h.batch) == 0 {
		return
	}
	if err := h.sink(ctx, h.batch); err != nil {
		h.failures++
		delay := min(h.flushDelay<<min(h.failures, 16), maxRetryDelay)
		h.retryAt = h.now().Add(delay)
		h.log.WithFields(logrus.Fields{
			"pending":  len(h.batch),
			"retry_in": delay,
		}).Errorf("flush: %v", err)
		return
	}
	h.log.Debugf("Flushed %d ledger events to DB.", len(h.batch))
	h.batch = h.batch[:0]
	h.failures = 0
	h.retryAt = time.Time{}
}
