package vm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/rhovm/rspace"
)

var schedLog = commonlog.GetLogger("rhovm.scheduler")

// ErrSchedulerDone is returned by Spawn once a scheduler has finished.
var ErrSchedulerDone = errors.New("scheduler has finished")

// WorkItem is a process queued with its sequence number.
type WorkItem struct {
	Seq     uint64
	Process *Process
}

// Scheduler runs processes on a fixed pool of workers. Each worker owns
// a private VM; all VMs share one RSpace (wrapped in rspace.Shared) and
// one fresh-name counter. Results are committed to a Journal in spawn
// order regardless of completion order.
//
// Run returns once every spawned item, including items spawned while
// Run is draining, has been executed. A scheduler runs once; Spawn
// fails after the last outstanding item completes.
type Scheduler struct {
	space   *rspace.Shared
	workers int
	opts    []Option
	names   atomic.Uint64
	journal *Journal
	runID   uuid.UUID

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []WorkItem
	seq         uint64
	outstanding int
	done        bool
	running     bool
}

// NewScheduler creates a scheduler over space with the given number of
// workers (at least one). opts are applied to every worker VM.
func NewScheduler(space rspace.RSpace, workers int, opts ...Option) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		space:   rspace.NewShared(space),
		workers: workers,
		opts:    opts,
		journal: NewJournal(0),
		runID:   uuid.New(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// RunID identifies this scheduler in logs.
func (s *Scheduler) RunID() uuid.UUID { return s.runID }

// RSpace returns the shared store the workers use.
func (s *Scheduler) RSpace() *rspace.Shared { return s.space }

// Journal returns the result journal.
func (s *Scheduler) Journal() *Journal { return s.journal }

// Spawn queues p and returns its sequence number. Sequence numbers
// start at 0 and follow call order.
func (s *Scheduler) Spawn(p *Process) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return 0, ErrSchedulerDone
	}
	p.MarkReady()
	item := WorkItem{Seq: s.seq, Process: p}
	s.seq++
	s.queue = append(s.queue, item)
	s.outstanding++
	s.cond.Signal()
	return item.Seq, nil
}

// Run executes queued work until none is outstanding or ctx is done, and
// returns the committed results. A process failure is reported in its
// Result, not as an error; the error is ctx's when it was cancelled.
func (s *Scheduler) Run(ctx context.Context) ([]Result, error) {
	s.mu.Lock()
	if s.done || s.running {
		s.mu.Unlock()
		return nil, ErrSchedulerDone
	}
	s.running = true
	queued := len(s.queue)
	s.mu.Unlock()

	schedLog.Infof("run %s: %d items on %d workers", s.runID, queued, s.workers)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)

	// wake idle workers when the context ends
	stop := context.AfterFunc(gctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	for w := 0; w < s.workers; w++ {
		w := w
		g.Go(func() error {
			return s.work(gctx, w)
		})
	}
	err := g.Wait()

	s.mu.Lock()
	s.done = true
	s.mu.Unlock()

	results := s.journal.Committed()
	schedLog.Infof("run %s: committed %d results in %s", s.runID, len(results), time.Since(start))
	if err == nil {
		err = ctx.Err()
	}
	return results, err
}

// next blocks until an item is available. It reports false when no work
// is outstanding or ctx is done.
func (s *Scheduler) next(ctx context.Context) (WorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && s.outstanding > 0 && ctx.Err() == nil {
		s.cond.Wait()
	}
	if ctx.Err() != nil || len(s.queue) == 0 {
		return WorkItem{}, false
	}
	item := s.queue[0]
	s.queue[0] = WorkItem{}
	s.queue = s.queue[1:]
	return item, true
}

// finish counts one item down and releases idle workers at quiescence.
func (s *Scheduler) finish() {
	s.mu.Lock()
	s.outstanding--
	if s.outstanding == 0 {
		// later spawns would find no worker left to take them
		s.done = true
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Scheduler) work(ctx context.Context, id int) error {
	opts := append(append([]Option(nil), s.opts...), WithNameCounter(&s.names))
	machine := NewVM(s.space, opts...)
	schedLog.Debugf("run %s: worker %d started", s.runID, id)

	n := 0
	for {
		item, ok := s.next(ctx)
		if !ok {
			schedLog.Debugf("run %s: worker %d stopped after %d items", s.runID, id, n)
			return ctx.Err()
		}
		v, err := item.Process.Run(machine)
		s.journal.Commit(Result{
			Seq:     item.Seq,
			Process: item.Process.Name(),
			Value:   v,
			Err:     err,
		})
		s.finish()
		n++
	}
}
