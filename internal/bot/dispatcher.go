package bot

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handler processes messages for the dispatcher.
type Handler interface {
	Handle(ctx context.Context, msg Message)
	Cancel(ctx context.Context, msg Message)
}

// Dispatcher runs messages of one identity strictly in arrival order while
// different identities proceed concurrently. /cancel skips the queue.
type Dispatcher struct {
	handler Handler

	mu      sync.Mutex
	pending map[int64][]Message
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher constructs a dispatcher whose workers run under ctx.
func NewDispatcher(ctx context.Context, handler Handler) *Dispatcher {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Dispatcher{
		handler: handler,
		pending: make(map[int64][]Message),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit queues msg for its identity. It returns false after Stop.
func (d *Dispatcher) Submit(msg Message) bool {
	if d == nil || d.handler == nil {
		return false
	}
	if IsCancel(msg.Text) {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if stopped {
			return false
		}
		d.handler.Cancel(d.ctx, msg)
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	queue, running := d.pending[msg.Identity]
	d.pending[msg.Identity] = append(queue, msg)
	if !running {
		d.wg.Add(1)
		go d.work(msg.Identity)
	}
	return true
}

// work drains the identity's queue and exits once it is empty.
func (d *Dispatcher) work(identity int64) {
	defer d.wg.Done()
	for {
		msg, ok := d.next(identity)
		if !ok {
			return
		}
		d.run(msg)
	}
}

func (d *Dispatcher) next(identity int64) (Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	queue := d.pending[identity]
	if len(queue) == 0 || d.ctx.Err() != nil {
		delete(d.pending, identity)
		return Message{}, false
	}
	msg := queue[0]
	d.pending[identity] = queue[1:]
	return msg, true
}

func (d *Dispatcher) run(msg Message) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.WithField("identity", msg.Identity).Errorf("bot: handler panic: %v", recovered)
		}
	}()
	d.handler.Handle(d.ctx, msg)
}

// Stop rejects new messages, cancels running work and waits for workers.
func (d *Dispatcher) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

// Wait blocks until every queued message has been handled.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
