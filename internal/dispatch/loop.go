package dispatch

import "sync"

// Loop queues callbacks for the interactive goroutine. Post never
// blocks, so workers can't stall on a busy loop.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Wake receives a value after one or more Post calls.
func (l *Loop) Wake() <-chan struct{} {
	return l.wake
}

// Drain runs the queued callbacks in posting order on the calling
// goroutine, including any posted while draining.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
		}
		n += len(batch)
	}
}
