package streamjoin

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Seq is a monotonically increasing morsel sequence number, used to keep
// the original arrival order of morsels visible to ordered reinsertion and
// ordered-unmatched emission (§3, §5).
type Seq uint64

// SourceToken lets the upstream pipeline ask a running task to stop
// producing more work early (e.g. the consumer side reached LIMIT). It is
// shared by all tasks pulled from the same source and is safe for
// concurrent use.
type SourceToken struct {
	stopped atomic.Bool
	tag     string
}

// NewSourceToken creates a fresh, not-yet-stopped SourceToken. The uuid tag
// exists purely for log correlation across the task group; the hot-path
// stop check never touches it.
func NewSourceToken() *SourceToken {
	return &SourceToken{tag: uuid.NewString()[:8]}
}

// StopRequested reports whether the token has been asked to stop.
func (t *SourceToken) StopRequested() bool {
	if t == nil {
		return false
	}
	return t.stopped.Load()
}

// Stop requests that tasks sharing this token wind down.
func (t *SourceToken) Stop() {
	if t == nil {
		return
	}
	t.stopped.Store(true)
}

// Tag returns the token's short correlation id, for log fields.
func (t *SourceToken) Tag() string {
	if t == nil {
		return ""
	}
	return t.tag
}

// ConsumeToken represents backpressure held by a downstream port: while a
// task holds one, the sender must wait before pushing the next morsel.
// Release is single-use; Wait blocks until the holder releases it (or the
// token is nil, the zero-backpressure case used by ports that don't gate
// their producer).
type ConsumeToken struct {
	done chan struct{}
	tag  string
}

// NewConsumeToken creates an unreleased ConsumeToken tagged for log
// correlation.
func NewConsumeToken() ConsumeToken {
	return ConsumeToken{done: make(chan struct{}), tag: uuid.NewString()[:8]}
}

func (c ConsumeToken) Tag() string { return c.tag }

// Release signals the producer waiting in Wait that this morsel has been
// fully consumed. Safe to call at most once.
func (c ConsumeToken) Release() {
	if c.done != nil {
		close(c.done)
	}
}

// Wait blocks until Release is called on this token.
func (c ConsumeToken) Wait() {
	if c.done != nil {
		<-c.done
	}
}

// nextTestSeq is a process-wide morsel sequence generator, kept for tests
// and for standalone component exercises that need a Seq without a node;
// JoinNode itself uses the seqs its input morsels carry.
var testSeqCounter uint64

func nextTestSeq() Seq {
	return Seq(atomic.AddUint64(&testSeqCounter, 1))
}
