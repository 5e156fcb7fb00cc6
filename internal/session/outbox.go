package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	outboxBaseDelay   = 500 * time.Millisecond
	outboxMaxDelay    = 10 * time.Second
	outboxMaxAttempts = 5
	outboxOpTimeout   = 15 * time.Second
)

type outboxOpKind int

const (
	opSave outboxOpKind = iota
	opDelete
)

type outboxOp struct {
	kind  outboxOpKind
	sess  *Session
	entry IndexEntry
	id    string
}

// Outbox pushes local writes to the remote session service in the
// background. Writes stay best-effort from the caller's point of view, but
// transient failures are retried with exponential backoff instead of being
// dropped on first error. Ops run strictly in enqueue order, so the newest
// save for a session is always the last one the server sees
// (last-writer-wins).
type Outbox struct {
	remote  RemoteAPI
	log     *zap.Logger
	limiter *rate.Limiter

	queue chan outboxOp
	done  chan struct{}

	mu     sync.Mutex
	closed bool

	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
}

// NewOutbox starts the outbox worker. depth bounds the number of pending
// ops; writesPerSec bounds the remote write rate.
func NewOutbox(remote RemoteAPI, log *zap.Logger, depth int, writesPerSec float64) *Outbox {
	if depth <= 0 {
		depth = 64
	}
	if writesPerSec <= 0 {
		writesPerSec = 5
	}
	o := &Outbox{
		remote:      remote,
		log:         log,
		limiter:     rate.NewLimiter(rate.Limit(writesPerSec), 1),
		queue:       make(chan outboxOp, depth),
		done:        make(chan struct{}),
		baseDelay:   outboxBaseDelay,
		maxDelay:    outboxMaxDelay,
		maxAttempts: outboxMaxAttempts,
	}
	go o.run()
	return o
}

// EnqueueSave schedules a remote upsert. The session must not be mutated by
// the caller afterwards. Never blocks: when the queue is full the op is
// dropped and logged, matching the accepted eventual-consistency posture.
func (o *Outbox) EnqueueSave(s *Session, entry IndexEntry) {
	o.enqueue(outboxOp{kind: opSave, sess: s, entry: entry, id: s.ID})
}

// EnqueueDelete schedules a remote delete.
func (o *Outbox) EnqueueDelete(id string) {
	o.enqueue(outboxOp{kind: opDelete, id: id})
}

func (o *Outbox) enqueue(op outboxOp) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.log.Warn("outbox closed, dropping remote write", zap.String("session_id", op.id))
		return
	}
	select {
	case o.queue <- op:
	default:
		o.log.Warn("outbox full, dropping remote write", zap.String("session_id", op.id))
	}
}

// Close stops accepting new ops and waits for the queue to drain, or for
// ctx to expire.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Outbox) run() {
	defer close(o.done)
	for op := range o.queue {
		o.apply(op)
	}
}

func (o *Outbox) apply(op outboxOp) {
	delay := o.baseDelay
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(delay)
			delay *= 2
			if delay > o.maxDelay {
				delay = o.maxDelay
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), outboxOpTimeout)
		if err := o.limiter.Wait(ctx); err != nil {
			cancel()
			continue
		}

		var err error
		switch op.kind {
		case opSave:
			err = o.remote.PutSession(ctx, op.sess, op.entry)
		case opDelete:
			err = o.remote.DeleteSession(ctx, op.id)
		}
		cancel()

		if err == nil {
			return
		}
		o.log.Warn("remote session write failed",
			zap.String("session_id", op.id),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	// Give up; the cache stays authoritative for this device until the next
	// successful save overwrites the remote copy.
	o.log.Warn("remote session write abandoned", zap.String("session_id", op.id))
}
