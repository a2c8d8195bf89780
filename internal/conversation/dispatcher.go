package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hthomas22/size-agent/pkg/logging"
)

// Dispatcher exposes the queue-backed entrypoints used by the webhook
// handlers.
type Dispatcher interface {
	Service
	Shutdown(ctx context.Context) error
}

// ErrDispatcherClosed indicates the dispatcher is no longer accepting work.
var ErrDispatcherClosed = errors.New("conversation: dispatcher closed")

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

const (
	jobKindStart = "start"
	jobKindReply = "reply"
)

type job struct {
	JobID string        `json:"job_id"`
	Kind  string        `json:"kind"`
	Start *StartRequest `json:"start,omitempty"`
	Reply *ReplyRequest `json:"reply,omitempty"`
}

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // messages
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
)

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for receive calls.
func WithReceiveWaitSeconds(seconds int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// QueueDispatcher routes conversation work through a queue before invoking
// the engine. The webhook layer gets its acknowledgment latency decoupled
// from LLM latency, and the queue can point at an in-memory channel in
// development or SQS in production without touching the handlers.
type QueueDispatcher struct {
	engine Service
	queue  queueClient
	logger *logging.Logger

	cfg dispatcherConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // jobID -> chan error
}

var _ Dispatcher = (*QueueDispatcher)(nil)

// NewQueueDispatcher wires a queue-backed dispatcher around the engine and
// starts its worker goroutines.
func NewQueueDispatcher(engine Service, queue queueClient, logger *logging.Logger, opts ...DispatcherOption) *QueueDispatcher {
	if engine == nil {
		panic("conversation: engine cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := dispatcherConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &QueueDispatcher{
		engine: engine,
		queue:  queue,
		logger: logger,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(i + 1)
	}

	return d
}

// StartConversation enqueues the request and blocks until a worker has
// processed it or ctx expires.
func (d *QueueDispatcher) StartConversation(ctx context.Context, req StartRequest) error {
	return d.dispatch(ctx, job{Kind: jobKindStart, Start: &req})
}

// ProcessReply enqueues the reply and blocks until a worker has processed it
// or ctx expires.
func (d *QueueDispatcher) ProcessReply(ctx context.Context, req ReplyRequest) error {
	return d.dispatch(ctx, job{Kind: jobKindReply, Reply: &req})
}

// Shutdown stops the workers and waits for in-flight jobs.
func (d *QueueDispatcher) Shutdown(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *QueueDispatcher) dispatch(ctx context.Context, j job) error {
	select {
	case <-d.ctx.Done():
		return ErrDispatcherClosed
	default:
	}

	j.JobID = uuid.NewString()
	body, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("conversation: encode job: %w", err)
	}

	result := make(chan error, 1)
	d.pending.Store(j.JobID, result)
	defer d.pending.Delete(j.JobID)

	if err := d.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("conversation: enqueue job: %w", err)
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrDispatcherClosed
	}
}

func (d *QueueDispatcher) runWorker(id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		messages, err := d.queue.Receive(d.ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if d.ctx.Err() != nil {
				return
			}
			d.logger.Error("queue receive failed", "worker", id, "error", err)
			continue
		}

		for _, msg := range messages {
			d.handleMessage(msg)
		}
	}
}

func (d *QueueDispatcher) handleMessage(msg queueMessage) {
	var j job
	if err := json.Unmarshal([]byte(msg.Body), &j); err != nil {
		d.logger.Error("dropping undecodable job", "message_id", msg.ID, "error", err)
		d.deleteMessage(msg)
		return
	}

	var err error
	switch j.Kind {
	case jobKindStart:
		if j.Start == nil {
			err = errors.New("conversation: start job missing payload")
		} else {
			err = d.engine.StartConversation(d.ctx, *j.Start)
		}
	case jobKindReply:
		if j.Reply == nil {
			err = errors.New("conversation: reply job missing payload")
		} else {
			err = d.engine.ProcessReply(d.ctx, *j.Reply)
		}
	default:
		err = fmt.Errorf("conversation: unknown job kind %q", j.Kind)
	}

	if err != nil {
		d.logger.Error("conversation job failed", "job_id", j.JobID, "kind", j.Kind, "error", err)
	}

	if ch, ok := d.pending.Load(j.JobID); ok {
		ch.(chan error) <- err
	}

	d.deleteMessage(msg)
}

func (d *QueueDispatcher) deleteMessage(msg queueMessage) {
	if err := d.queue.Delete(d.ctx, msg.ReceiptHandle); err != nil && d.ctx.Err() == nil {
		d.logger.Error("failed to delete queue message", "message_id", msg.ID, "error", err)
	}
}
