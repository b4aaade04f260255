package director

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/types"
	"github.com/vmihailenco/taskq/v3"
)

// ErrNoSubscriber is returned by Publish before a handler is subscribed.
// Chunks are never silently dropped.
var ErrNoSubscriber = errors.New("event bus: no subscriber")

// ErrBacklogFull is returned by Publish when every worker is busy and the
// backlog holds as many chunks as it may.
var ErrBacklogFull = errors.New("event bus: backlog is full")

var errBusClosed = errors.New("event bus: closed")

// ChunkHandler consumes one chunk. A returned error makes the queue
// redeliver the chunk, so per-device failures must not be returned.
type ChunkHandler func(ctx context.Context, chunk *types.SuiteChunk) error

// EventBus carries suite chunks on a single topic from registration to the
// pipeline over a taskq queue. Delivery is at least once.
type EventBus struct {
	queue taskq.Queue
	topic string

	// backlog is nil when chunks are added to the queue directly.
	backlog   chan *types.SuiteChunk
	stop      chan struct{}
	closeOnce sync.Once

	mu   sync.RWMutex
	task *taskq.Task
	ctx  context.Context
}

// NewEventBus wraps queue. With a positive backlog, Publish only hands chunks
// to a bounded backlog that a forwarder drains into the queue, so it never
// waits on busy workers. A backlog of 0 adds to the queue directly and suits
// queues whose Add does not wait on consumers, like redisq.
func NewEventBus(queue taskq.Queue, backlog int) *EventBus {
	b := &EventBus{
		queue: queue,
		topic: queue.Name(),
		stop:  make(chan struct{}),
		ctx:   context.Background(),
	}
	if backlog > 0 {
		b.backlog = make(chan *types.SuiteChunk, backlog)
		go b.forward()
	}
	return b
}

func (b *EventBus) Topic() string {
	return b.topic
}

// Subscribe registers the one handler for the topic.
func (b *EventBus) Subscribe(handler ChunkHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.task != nil {
		return errors.Errorf("event bus: %s already has a subscriber", b.topic)
	}

	task, err := taskq.Tasks.Register(&taskq.TaskOptions{
		Name: b.topic,
		Handler: func(chunk *types.SuiteChunk) error {
			return handler(b.context(), chunk)
		},
		RetryLimit: 3,
	})
	if err != nil {
		return errors.Wrap(err, "Subscribe")
	}
	b.task = task
	return nil
}

// Publish enqueues chunk and returns without waiting for it to run. It
// fails fast with ErrBacklogFull instead of blocking.
func (b *EventBus) Publish(ctx context.Context, chunk *types.SuiteChunk) error {
	b.mu.RLock()
	task := b.task
	b.mu.RUnlock()

	if task == nil {
		return ErrNoSubscriber
	}
	if b.backlog == nil {
		return b.add(ctx, task, chunk)
	}

	select {
	case <-b.stop:
		return errors.Wrap(errBusClosed, "Publish")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "Publish")
	default:
	}

	select {
	case b.backlog <- chunk:
		return nil
	default:
		return errors.Wrapf(ErrBacklogFull, "Publish: %d chunks waiting", cap(b.backlog))
	}
}

func (b *EventBus) add(ctx context.Context, task *taskq.Task, chunk *types.SuiteChunk) error {
	msg := task.WithArgs(ctx, chunk)
	if err := b.queue.Add(msg); err != nil {
		return errors.Wrap(err, "Publish")
	}
	if msg.Err != nil {
		return errors.Wrap(msg.Err, "Publish")
	}
	return nil
}

// forward moves backlogged chunks into the queue, waiting on workers when
// the queue buffer is full.
func (b *EventBus) forward() {
	for {
		select {
		case <-b.stop:
			return
		case chunk := <-b.backlog:
			b.mu.RLock()
			task, ctx := b.task, b.ctx
			b.mu.RUnlock()

			err := errBusClosed
			if task != nil {
				err = b.add(ctx, task, chunk)
			}
			if err != nil {
				ErrorLogger(LogHolder{
					SuiteName: chunk.SuiteName,
					TenantID:  chunk.TenantID,
					Message:   "Forwarding suite chunk: " + err.Error(),
				})
			}
		}
	}
}

// Start runs the consumer workers. Handlers receive ctx.
func (b *EventBus) Start(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	DebugLogger(LogHolder{Message: "Processing suite chunks from " + b.topic})
	if err := b.queue.Consumer().Start(ctx); err != nil {
		// memqueue starts its consumer on creation
		DebugLogger(LogHolder{Message: "Starting consumer: " + err.Error()})
	}
}

// Close stops the forwarder and the consumer and releases the topic name.
// Chunks still in the backlog are dropped.
func (b *EventBus) Close() error {
	b.closeOnce.Do(func() { close(b.stop) })
	if pending := len(b.backlog); pending > 0 {
		WarnLogger(LogHolder{Message: "Dropping backlogged suite chunks", Metric: strconv.Itoa(pending)})
	}

	err := b.queue.Close()

	b.mu.Lock()
	if b.task != nil {
		taskq.Tasks.Unregister(b.task)
		b.task = nil
	}
	b.mu.Unlock()

	return err
}

func (b *EventBus) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}
