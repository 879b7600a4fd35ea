package router

import (
	"sync"

	"github.com/flemzord/parrot/internal/session"
)

// lanes keeps per-conversation order without parking workers. The first
// message of an idle conversation goes to the inbox and claims its lane;
// messages arriving while the lane is claimed wait in the lane's backlog
// and are run, in order, by the worker holding the claim.
type lanes struct {
	mu      sync.Mutex
	active  map[session.Key]*lane
	backlog int // jobs waiting in lane queues
	limit   int // bound on inbox plus backlog
}

type lane struct {
	pending []job
}

func newLanes(limit int) *lanes {
	return &lanes{active: make(map[session.Key]*lane), limit: limit}
}

// admit queues j in submission order. It reports false when the inbox and
// the backlogs together already hold limit jobs.
func (l *lanes) admit(j job, inbox chan<- job) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(inbox)+l.backlog >= l.limit {
		return false
	}
	if ln, busy := l.active[j.key]; busy {
		ln.pending = append(ln.pending, j)
		l.backlog++
		return true
	}
	select {
	case inbox <- j:
		l.active[j.key] = &lane{}
		return true
	default:
		return false
	}
}

// next hands the claim holder the following job of key's lane. With nothing
// pending the lane is freed and next reports false.
func (l *lanes) next(key session.Key) (job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln := l.active[key]
	if ln == nil {
		return job{}, false
	}
	if len(ln.pending) == 0 {
		delete(l.active, key)
		return job{}, false
	}
	j := ln.pending[0]
	ln.pending[0] = job{}
	ln.pending = ln.pending[1:]
	l.backlog--
	return j, true
}

// len reports how many conversations are claimed.
func (l *lanes) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}
