package backend

import (
	"sync"

	"wodbox/internal/metrics"
)

type AuthEvent string

const (
	EventInitialSession   AuthEvent = "INITIAL_SESSION"
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// AuthChange is delivered to listeners on every auth state transition.
// Session is nil when the transition leaves no active session.
type AuthChange struct {
	Event   AuthEvent
	Session *Session
}

type listener struct {
	id int
	fn func(AuthChange)
}

// delivery pins the listeners registered at emission time.
type delivery struct {
	change    AuthChange
	listeners []listener
}

// dispatcher delivers changes to listeners in emission order from a single
// goroutine. Emitting never blocks, so listeners may emit.
type dispatcher struct {
	mu        sync.Mutex
	nextID    int
	listeners []listener
	pending   []delivery

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(fn func(AuthChange)) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, listener{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, l := range d.listeners {
			if l.id == id {
				d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

func (d *dispatcher) emit(change AuthChange) {
	metrics.RecordAuthEvent(string(change.Event))

	d.mu.Lock()
	ls := make([]listener, len(d.listeners))
	copy(ls, d.listeners)
	d.pending = append(d.pending, delivery{change: change, listeners: ls})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			if len(d.pending) == 0 {
				d.mu.Unlock()
				break
			}
			next := d.pending[0]
			d.pending = d.pending[1:]
			d.mu.Unlock()

			for _, l := range next.listeners {
				l.fn(next.change)
			}
		}
	}
}

func (d *dispatcher) close() {
	d.once.Do(func() { close(d.done) })
}
