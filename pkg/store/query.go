package store

import (
	"time"

	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/aleksaelezovic/tritensor/pkg/sparql"
	"github.com/aleksaelezovic/tritensor/pkg/sparql/executor"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/cockroachdb/errors"
)

// ErrTimeout is returned when evaluation passes its deadline. Partial
// results are discarded.
var ErrTimeout = errors.New("query evaluation timed out")

// NoDeadline disables the evaluation timeout
var NoDeadline time.Time

// EvalState is the lifecycle of one evaluation
type EvalState int

const (
	EvalNotStarted EvalState = iota
	EvalRunning
	EvalCompleted
	EvalTimedOut
	EvalFailed
)

func (s EvalState) String() string {
	switch s {
	case EvalNotStarted:
		return "not started"
	case EvalRunning:
		return "running"
	case EvalCompleted:
		return "completed"
	case EvalTimedOut:
		return "timed out"
	case EvalFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s EvalState) terminal() bool {
	return s == EvalCompleted || s == EvalTimedOut || s == EvalFailed
}

func expired(endtime time.Time) bool {
	return !endtime.IsZero() && !time.Now().Before(endtime)
}

func deadlineCheck(endtime time.Time) tensor.CheckpointFunc {
	return func() error {
		if expired(endtime) {
			return ErrTimeout
		}
		return nil
	}
}

// Solutions is the lazy result of EvalSelect. It holds a snapshot, and a
// reader lock unless the caller supplied one, until it is exhausted or
// closed.
type Solutions struct {
	variables []string
	endtime   time.Time
	rows      executor.Rows
	snapshot  *tensor.Snapshot
	lock      *ReaderLock
	state     EvalState
	err       error
	closed    bool
}

// Variables returns the column names
func (s *Solutions) Variables() []string {
	return s.variables
}

// Next advances to the next solution. It returns false at the end, on
// timeout and on failure; Err tells them apart.
func (s *Solutions) Next() bool {
	if s.state.terminal() || s.closed {
		return false
	}
	s.state = EvalRunning
	if expired(s.endtime) {
		s.finish(EvalTimedOut, ErrTimeout)
		return false
	}
	if s.rows.Next() {
		return true
	}
	switch err := s.rows.Err(); {
	case err == nil:
		s.finish(EvalCompleted, nil)
	case errors.Is(err, ErrTimeout):
		s.finish(EvalTimedOut, ErrTimeout)
	default:
		s.finish(EvalFailed, err)
	}
	return false
}

// Entry returns the current solution in column order. It is valid until the
// next call to Next.
func (s *Solutions) Entry() tensor.Entry {
	return s.rows.Entry()
}

// Err returns ErrTimeout or the failure that ended evaluation
func (s *Solutions) Err() error {
	return s.err
}

// State returns the evaluation state
func (s *Solutions) State() EvalState {
	return s.state
}

// Close releases the snapshot and lock. It is safe to call more than once.
func (s *Solutions) Close() error {
	s.release()
	return nil
}

func (s *Solutions) finish(state EvalState, err error) {
	s.state = state
	s.err = err
	s.release()
}

func (s *Solutions) release() {
	if s.closed {
		return
	}
	s.closed = true
	s.rows.Close()
	if s.snapshot != nil {
		s.snapshot.Close()
	}
	if s.lock != nil {
		s.lock.Release()
		s.lock = nil
	}
}

// EvalSelect evaluates q under a reader lock held until the returned
// Solutions is exhausted or closed. A zero endtime means no deadline.
func (s *TripleStore) EvalSelect(q *sparql.Query, endtime time.Time) (*Solutions, error) {
	if expired(endtime) {
		return nil, ErrTimeout
	}
	rl := s.AcquireReaderLock()
	sol, err := s.evalSelect(rl, q, endtime)
	if err != nil {
		rl.Release()
		return nil, err
	}
	sol.lock = rl
	return sol, nil
}

// EvalSelectLocked is EvalSelect under a lock the caller already holds
func (s *TripleStore) EvalSelectLocked(rl *ReaderLock, q *sparql.Query, endtime time.Time) (*Solutions, error) {
	s.mustHoldReader(rl)
	return s.evalSelect(rl, q, endtime)
}

func (s *TripleStore) evalSelect(_ *ReaderLock, q *sparql.Query, endtime time.Time) (*Solutions, error) {
	if q == nil {
		return nil, errors.AssertionFailedf("nil query")
	}
	if expired(endtime) {
		return nil, ErrTimeout
	}

	snap, err := s.tensor.Snapshot()
	if err != nil {
		return nil, err
	}
	snap.SetCheckpoint(deadlineCheck(endtime))

	exec := executor.NewExecutor(snap)
	plan, err := exec.Plan(q)
	if err != nil {
		snap.Close()
		return nil, err
	}
	if expired(endtime) {
		snap.Close()
		return nil, ErrTimeout
	}

	s.log.Debugw("evaluating query",
		logger.FieldQuery, q.Text,
		"patterns", len(plan.Patterns),
		"estimates", plan.Estimates)

	return &Solutions{
		variables: plan.Variables,
		endtime:   endtime,
		rows:      exec.Execute(plan),
		snapshot:  snap,
	}, nil
}

// EvalAsk reports whether q has at least one solution
func (s *TripleStore) EvalAsk(q *sparql.Query, endtime time.Time) (bool, error) {
	sol, err := s.EvalSelect(q, endtime)
	if err != nil {
		return false, err
	}
	defer sol.Close()
	return sol.Next(), sol.Err()
}

// EvalAskLocked is EvalAsk under a lock the caller already holds
func (s *TripleStore) EvalAskLocked(rl *ReaderLock, q *sparql.Query, endtime time.Time) (bool, error) {
	sol, err := s.EvalSelectLocked(rl, q, endtime)
	if err != nil {
		return false, err
	}
	defer sol.Close()
	return sol.Next(), sol.Err()
}

// Count returns the number of solutions EvalSelect would produce
func (s *TripleStore) Count(q *sparql.Query, endtime time.Time) (uint64, error) {
	if expired(endtime) {
		return 0, ErrTimeout
	}
	rl := s.AcquireReaderLock()
	defer rl.Release()
	return s.count(q, endtime)
}

// CountLocked is Count under a lock the caller already holds
func (s *TripleStore) CountLocked(rl *ReaderLock, q *sparql.Query, endtime time.Time) (uint64, error) {
	s.mustHoldReader(rl)
	return s.count(q, endtime)
}

func (s *TripleStore) count(q *sparql.Query, endtime time.Time) (uint64, error) {
	if q == nil {
		return 0, errors.AssertionFailedf("nil query")
	}
	if expired(endtime) {
		return 0, ErrTimeout
	}

	snap, err := s.tensor.Snapshot()
	if err != nil {
		return 0, err
	}
	defer snap.Close()
	snap.SetCheckpoint(deadlineCheck(endtime))

	exec := executor.NewExecutor(snap)
	plan, err := exec.Plan(q)
	if err != nil {
		return 0, err
	}
	n, err := exec.Count(plan)
	if err != nil {
		return 0, err
	}
	// a result computed past the deadline is still discarded
	if expired(endtime) {
		return 0, ErrTimeout
	}
	return n, nil
}
