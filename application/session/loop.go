package session

import (
	"context"
	"sync"

	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"go.uber.org/zap"
)

// Loop runs posted tasks one at a time, in the order they were posted, on
// a single goroutine. Everything that touches session state runs here, so
// the components need no locks of their own.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped bool
	logger  *zap.Logger
}

// NewLoop creates and starts a loop
func NewLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

// Post queues fn and never blocks. It returns false once the loop has
// been stopped; fn will then never run.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish or for ctx to end.
// If ctx ends first fn may still run later.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return pkgerrors.NewUnavailableError("session")
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return pkgerrors.NewTimeoutError("session call")
	}
}

// Stop runs what is already queued, then ends the loop
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, fn := range batch {
			l.exec(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-l.wake
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Session task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}
