// Package mailbox provides the blocking handoff queue that moves
// values from an adapter's event-dispatch goroutine to a synchronous
// caller: connection handles, relayed passkeys and final auth results.
package mailbox

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is returned by Get when no value arrives in time.
var ErrTimeout = errors.New("mailbox: timed out")

// Mailbox is a FIFO handoff queue. Put never blocks; Get blocks until
// a value is available or the timeout elapses. Each value is taken by
// exactly one caller. The zero value is not usable, use New.
type Mailbox struct {
	mu    sync.Mutex
	vals  []interface{}
	avail chan struct{}
}

func New() *Mailbox {
	return &Mailbox{
		avail: make(chan struct{}, 1),
	}
}

// Put appends v and wakes one waiting Get.
func (m *Mailbox) Put(v interface{}) {
	m.mu.Lock()
	m.vals = append(m.vals, v)
	m.mu.Unlock()

	select {
	case m.avail <- struct{}{}:
	default:
	}
}

// Get removes and returns the oldest value, waiting up to timeout for
// one to arrive.
func (m *Mailbox) Get(timeout time.Duration) (interface{}, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if v, ok := m.take(); ok {
			return v, nil
		}

		select {
		case <-m.avail:
			// go around; another consumer may have taken the value
		case <-deadline.C:
			return nil, ErrTimeout
		}
	}
}

func (m *Mailbox) take() (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.vals) == 0 {
		return nil, false
	}

	v := m.vals[0]
	m.vals = m.vals[1:]

	// keep the wakeup token alive while values remain
	if len(m.vals) > 0 {
		select {
		case m.avail <- struct{}{}:
		default:
		}
	}

	return v, true
}

// Len reports how many values are queued.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vals)
}
