package auth

import (
	"sync"

	"github.com/onebills/onebills/internal/backend"
)

type notice struct {
	event   backend.Event
	session *backend.Session
}

// listener delivers notices to one callback on its own goroutine, in emit
// order, without ever blocking the emitter.
type listener struct {
	fn      backend.AuthChangeFunc
	mu      sync.Mutex
	queue   []notice
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

func newListener(fn backend.AuthChangeFunc) *listener {
	l := &listener{fn: fn, wake: make(chan struct{}, 1), done: make(chan struct{})}
	go l.run()
	return l
}

func (l *listener) push(n notice) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, n)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if l.stopped || len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			n := l.queue[0]
			l.queue = l.queue[1:]
			l.mu.Unlock()
			l.fn(n.event, n.session)
		}
	}
}

func (l *listener) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.queue = nil
	close(l.done)
}

type broadcaster struct {
	mu        sync.Mutex
	next      int
	listeners map[int]*listener
}

func newBroadcaster() *broadcaster {
	return &broadcaster{listeners: make(map[int]*listener)}
}

func (b *broadcaster) subscribe(fn backend.AuthChangeFunc) func() {
	l := newListener(fn)
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
			l.stop()
		})
	}
}

func (b *broadcaster) emit(event backend.Event, session *backend.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.listeners {
		l.push(notice{event: event, session: session})
	}
}
