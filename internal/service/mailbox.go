package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// mailbox runs posted functions one at a time, in posting order.
//
// There is no dedicated goroutine: the first poster finding the mailbox
// idle drains it, including work posted while it drains. A post made from
// inside a running function only enqueues, so handlers may trigger further
// events without deadlocking.
type mailbox struct {
	logger *zap.Logger

	mu       sync.Mutex
	queue    []func()
	draining bool
}

// post enqueues fn. It never waits for other posters' work unless the
// caller becomes the drainer.
func (m *mailbox) post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	m.mu.Unlock()

	m.drain()
}

// call posts fn and waits until it has run or ctx is done. It must not be
// used from inside a mailbox function.
func (m *mailbox) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	m.post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mailbox) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.run(fn)
	}
}

func (m *mailbox) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("mailbox: recovered panic", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
		}
	}()
	fn()
}
