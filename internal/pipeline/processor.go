package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/logger"
	"github.com/cesargomez89/artshelf/internal/store"
)

// Handler runs the stage transform for one claimed item. Returning nil marks
// the item completed; any error marks it failed.
type Handler interface {
	Handle(ctx context.Context, item *domain.QueueItem, payload domain.Payload, logger *slog.Logger) error
}

// Queue is the subset of the job store a processor drives.
type Queue interface {
	ClaimNext(ctx context.Context, queueType domain.QueueType, workerID string) (*domain.QueueItem, error)
	Complete(ctx context.Context, id int64, workerID string) error
	Fail(ctx context.Context, id int64, workerID, message string) error
	PendingCount(ctx context.Context, queueType domain.QueueType) (int, error)
	RecoverStale(ctx context.Context, window time.Duration) (int64, error)
}

// Processor drains one queue type. At most one drain loop runs per processor;
// triggers that arrive while it is draining are dropped.
type Processor struct {
	queue     Queue
	handler   Handler
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	timer     *time.Timer
	queueType domain.QueueType
	workerID  string
	wg        sync.WaitGroup
	mu        sync.Mutex
	draining  bool
	stopped   bool

	RepollDelay time.Duration
	StaleWindow time.Duration
}

func NewProcessor(queueType domain.QueueType, queue Queue, handler Handler, workerID string, log *logger.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		queue:       queue,
		handler:     handler,
		logger:      log.WithComponent(string(queueType) + "-processor"),
		ctx:         ctx,
		cancel:      cancel,
		queueType:   queueType,
		workerID:    workerID,
		RepollDelay: constants.DefaultRepollDelay,
		StaleWindow: constants.StaleLockWindow,
	}
}

func (p *Processor) QueueType() domain.QueueType {
	return p.queueType
}

func (p *Processor) WorkerID() string {
	return p.workerID
}

// Trigger starts a background drain unless one is already running.
func (p *Processor) Trigger() {
	if !p.acquire() {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.drainAcquired(p.ctx)
	}()
}

// Drain runs a drain loop on the calling goroutine and returns the number of
// items processed. It returns immediately with started=false when another
// drain is in progress.
func (p *Processor) Drain(ctx context.Context) (processed int, started bool) {
	if !p.acquire() {
		return 0, false
	}
	return p.drainAcquired(ctx), true
}

// Busy reports whether a drain is running or a re-poll is scheduled.
func (p *Processor) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draining || p.timer != nil
}

// Stop cancels in-flight work and pending re-polls and waits for the drain
// goroutine to exit. Items it held stay processing until stale recovery.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Processor) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.draining || p.stopped {
		return false
	}
	p.draining = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	return true
}

func (p *Processor) release() {
	p.mu.Lock()
	p.draining = false
	p.mu.Unlock()
}

func (p *Processor) drainAcquired(ctx context.Context) int {
	processed := 0
	defer func() {
		p.release()
		p.scheduleRepoll()
	}()

	if n, err := p.queue.RecoverStale(ctx, p.StaleWindow); err != nil {
		p.logger.Error("Failed to recover stale items", "error", err)
	} else if n > 0 {
		p.logger.Warn("Recovered stale items", "count", n)
	}

	for {
		if ctx.Err() != nil {
			return processed
		}

		item, err := p.queue.ClaimNext(ctx, p.queueType, p.workerID)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("Failed to claim next item", "error", err)
			}
			return processed
		}
		if item == nil {
			if processed > 0 {
				p.logger.Info("Queue drained", "processed", processed)
			}
			return processed
		}

		p.process(ctx, item)
		processed++
	}
}

func (p *Processor) process(ctx context.Context, item *domain.QueueItem) {
	log := p.logger.WithQueueItem(item.ID, string(item.QueueType))
	start := time.Now()

	err := p.handle(ctx, item, log.Logger)

	if err != nil && ctx.Err() != nil {
		log.Warn("Interrupted, leaving item for stale recovery", "error", err)
		return
	}

	// The item's outcome is recorded even if shutdown begins right now.
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		log.Error("Item failed", "error", err, "duration", time.Since(start))
		if failErr := p.queue.Fail(writeCtx, item.ID, p.workerID, err.Error()); failErr != nil {
			p.logOutcomeError(log, "Failed to mark item failed", failErr)
		}
		return
	}

	if err := p.queue.Complete(writeCtx, item.ID, p.workerID); err != nil {
		p.logOutcomeError(log, "Failed to mark item completed", err)
		return
	}
	log.Debug("Item completed", "duration", time.Since(start))
}

func (p *Processor) logOutcomeError(log *logger.Logger, msg string, err error) {
	if errors.Is(err, store.ErrLockLost) {
		log.Warn("Item was reclaimed by another worker, outcome dropped", "error", err)
		return
	}
	log.Error(msg, "error", err)
}

func (p *Processor) handle(ctx context.Context, item *domain.QueueItem, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	payload, err := item.Decode()
	if err != nil {
		return err
	}
	if payload.QueueType() != p.queueType {
		return errors.New("payload does not belong to this queue")
	}
	return p.handler.Handle(ctx, item, payload, log)
}

// scheduleRepoll re-arms the processor when work arrived after the queue
// looked empty, typically from another process sharing the database.
func (p *Processor) scheduleRepoll() {
	if p.ctx.Err() != nil {
		return
	}
	pending, err := p.queue.PendingCount(p.ctx, p.queueType)
	if err != nil {
		p.logger.Error("Failed to count pending items", "error", err)
		return
	}
	if pending == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.draining || p.timer != nil {
		return
	}
	p.logger.Debug("Pending items remain, scheduling re-poll", "pending", pending, "delay", p.RepollDelay)
	var t *time.Timer
	t = time.AfterFunc(p.RepollDelay, func() {
		p.mu.Lock()
		if p.timer == t {
			p.timer = nil
		}
		p.mu.Unlock()
		p.Trigger()
	})
	p.timer = t
}
