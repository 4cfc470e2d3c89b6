package vm

import (
	"sync"

	"github.com/chazu/rhovm/pkg/rho"
)

// Result is the outcome of one scheduled work item.
type Result struct {
	Seq     uint64
	Process string
	Value   rho.Value
	Err     error
}

// Journal commits results in sequence order. Results that arrive early
// are held until every lower sequence number has been committed.
type Journal struct {
	mu        sync.Mutex
	next      uint64
	pending   map[uint64]Result
	committed []Result
}

// NewJournal creates a journal expecting start as its first sequence.
func NewJournal(start uint64) *Journal {
	return &Journal{
		next:    start,
		pending: make(map[uint64]Result),
	}
}

// Commit records r and flushes every result that is now in order.
// A sequence number already committed or pending is ignored.
func (j *Journal) Commit(r Result) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if r.Seq < j.next {
		return
	}
	if _, dup := j.pending[r.Seq]; dup {
		return
	}
	j.pending[r.Seq] = r
	for {
		next, ok := j.pending[j.next]
		if !ok {
			return
		}
		delete(j.pending, j.next)
		j.committed = append(j.committed, next)
		j.next++
	}
}

// Committed returns a copy of the in-order results so far.
func (j *Journal) Committed() []Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Result, len(j.committed))
	copy(out, j.committed)
	return out
}

// Pending returns how many results are waiting on an earlier sequence.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}
