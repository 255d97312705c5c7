package streamjoin

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultSampleLimit is the row cap sampled from each side before forcing a
// build-side decision, overridable by JOIN_SAMPLE_LIMIT (§4.3, §6).
const DefaultSampleLimit = 10_000_000

// LopsidedFactor: once one side's published length is this many times the
// other's, sampling stops immediately and the smaller side is chosen
// without estimating cardinalities (§4.3, §8 boundary behaviour).
const LopsidedFactor = 10

// sampleSide accumulates one input's sampled morsels and publishes its
// running row count so the opposite side's sink can observe it.
type sampleSide struct {
	buf       *BufferedStream
	runningLen int64 // atomic
	done       atomic.Bool
	doneLen    int64 // valid once done is set
	saturated  bool  // true if this side stopped due to SAMPLE_LIMIT/lopsidedness rather than EOF
}

func newSampleSide() *sampleSide {
	return &sampleSide{buf: NewBufferedStream()}
}

// SampleState runs both input sinks concurrently and decides which side
// becomes the build side (§4.3).
type SampleState struct {
	params *SampleParams
	left   *sampleSide
	right  *sampleSide
}

// SampleParams is the subset of JoinParams the sample phase needs, kept
// separate so sample.go doesn't need the full node wiring to be testable.
type SampleParams struct {
	SampleLimit  int
	LeftKeyNames []string
	RightKeyNames []string
	// Verbose raises the sample-decision logging in this state from Debug to
	// Info (§6 "verbose flag").
	Verbose bool
	Logger  *zap.SugaredLogger
}

// logDecision logs at Info when Verbose is set, Debug otherwise (§6).
func (s *SampleState) logDecision(msg string, kv ...interface{}) {
	if s.params.Verbose {
		s.params.Logger.Infow(msg, kv...)
		return
	}
	s.params.Logger.Debugw(msg, kv...)
}

// NewSampleState creates a fresh sample state for both sides.
func NewSampleState(p *SampleParams) *SampleState {
	if p.Logger == nil {
		p.Logger = NopLogger()
	}
	return &SampleState{params: p, left: newSampleSide(), right: newSampleSide()}
}

// Sink absorbs recv into the given side's buffer until SAMPLE_LIMIT,
// lopsidedness, or input EOF, per §4.3's sink protocol. Consume tokens are
// released before the morsel is stashed, so backpressure reflects the
// sink's own pace rather than how long the morsel sits in the buffer.
func (s *SampleState) Sink(isLeft bool, recv <-chan Morsel) {
	side, other := s.left, s.right
	if !isLeft {
		side, other = s.right, s.left
	}
	for m := range recv {
		m.ConsumeToken.Release()
		running := atomic.AddInt64(&side.runningLen, int64(m.DF.Height()))
		side.buf.Push(m)

		limitHit := running >= int64(s.params.SampleLimit)
		lopsided := false
		if other.done.Load() {
			otherLen := atomic.LoadInt64(&other.doneLen)
			lopsided = running >= LopsidedFactor*otherLen
		}
		if limitHit || lopsided {
			m.SourceToken.Stop()
			side.saturated = true
			atomic.StoreInt64(&side.doneLen, running)
			side.done.Store(true)
			break
		}
	}
	if !side.done.Load() {
		atomic.StoreInt64(&side.doneLen, atomic.LoadInt64(&side.runningLen))
		side.done.Store(true)
	}
}

// buildDecision is the outcome of TryTransitionToBuild.
type buildDecision struct {
	leftIsBuild bool
}

// ready reports whether sampling has collected enough information to
// decide a build side, per §4.3's stopping condition: both sides done, or
// one side done and the other has reached LopsidedFactor times its length.
func (s *SampleState) ready() bool {
	lDone, rDone := s.left.done.Load(), s.right.done.Load()
	if lDone && rDone {
		return true
	}
	if lDone && !rDone {
		rLen := atomic.LoadInt64(&s.right.runningLen)
		lLen := atomic.LoadInt64(&s.left.doneLen)
		return rLen >= LopsidedFactor*lLen
	}
	if rDone && !lDone {
		lLen := atomic.LoadInt64(&s.left.runningLen)
		rLen := atomic.LoadInt64(&s.right.doneLen)
		return lLen >= LopsidedFactor*rLen
	}
	return false
}

// TryTransitionToBuild decides the build side once sampling has converged,
// following the table in §4.3. It returns ok=false if sampling must
// continue.
func (s *SampleState) TryTransitionToBuild() (decision buildDecision, ok bool) {
	if !s.ready() {
		return buildDecision{}, false
	}

	lSat, rSat := s.left.saturated, s.right.saturated
	L := atomic.LoadInt64(&s.left.doneLen)
	if L == 0 {
		L = atomic.LoadInt64(&s.left.runningLen)
	}
	R := atomic.LoadInt64(&s.right.doneLen)
	if R == 0 {
		R = atomic.LoadInt64(&s.right.runningLen)
	}

	switch {
	case !lSat && !rSat:
		switch {
		case L*LopsidedFactor < R:
			decision.leftIsBuild = true
		case R*LopsidedFactor < L:
			decision.leftIsBuild = false
		default:
			decision.leftIsBuild = s.pickByCost(L, R)
		}
	case !lSat && rSat:
		decision.leftIsBuild = true // left is the bounded/cheaper side
	case lSat && !rSat:
		decision.leftIsBuild = false
	default: // both saturated
		decision.leftIsBuild = s.pickByCardinality(L, R)
	}

	s.logDecision("sample decided build side",
		"left_len", L, "right_len", R, "left_saturated", lSat, "right_saturated", rSat,
		"left_is_build", decision.leftIsBuild)
	return decision, true
}

// pickByCost estimates both sides' distinct-key cardinality via a
// CardinalitySketch fed from the buffered sample, extrapolates to the true
// row count, and picks the side with the lower build_cost+probe_cost sum
// (§4.3 cost model).
func (s *SampleState) pickByCost(leftLen, rightLen int64) bool {
	leftCard := s.estimateCardinality(s.left, s.params.LeftKeyNames, leftLen)
	rightCard := s.estimateCardinality(s.right, s.params.RightKeyNames, rightLen)

	buildCost := func(n int64, c float64) float64 { return 3*float64(n) + 3*c }
	probeCost := func(n int64) float64 { return float64(n) }

	leftAsBuild := buildCost(leftLen, leftCard) + probeCost(rightLen)
	rightAsBuild := buildCost(rightLen, rightCard) + probeCost(leftLen)

	s.logDecision("sample cost estimate",
		"left_cardinality", leftCard, "right_cardinality", rightCard,
		"left_as_build_cost", leftAsBuild, "right_as_build_cost", rightAsBuild)

	return leftAsBuild < rightAsBuild
}

// pickByCardinality picks the side with the lower estimated distinct-key
// cardinality directly, with no row-count weighting. Used only when both
// sides saturated sampling (hit SAMPLE_LIMIT or the lopsided cutoff): with
// neither side's true length known, buildCost/probeCost's row-count terms
// are unreliable, so the decision falls back to comparing cardinality
// estimates alone (§4.3 both-saturated case).
func (s *SampleState) pickByCardinality(leftLen, rightLen int64) bool {
	leftCard := s.estimateCardinality(s.left, s.params.LeftKeyNames, leftLen)
	rightCard := s.estimateCardinality(s.right, s.params.RightKeyNames, rightLen)

	s.logDecision("sample cardinality estimate (both saturated)",
		"left_cardinality", leftCard, "right_cardinality", rightCard)

	return leftCard < rightCard
}

// estimateCardinality hashes every buffered morsel's key columns for side
// through a fresh CardinalitySketch, in parallel across morsels, then
// extrapolates the estimate to trueLen (§4.3).
func (s *SampleState) estimateCardinality(side *sampleSide, keyNames []string, trueLen int64) float64 {
	morsels := side.buf.buf
	if len(morsels) == 0 {
		return 0
	}
	sketch := NewCardinalitySketch()
	var mu sync.Mutex
	parallelEach(len(morsels), func(i int) {
		m := morsels[i]
		hk := NewHashKeysFromFrame(keyFrame(m.DF, keyNames), false)
		local := NewCardinalitySketch()
		hk.SketchCardinality(local)
		mu.Lock()
		_ = sketch.Merge(local)
		mu.Unlock()
	})
	return extrapolatedCardinality(sketch.Estimate(), int(trueLen), s.params.SampleLimit)
}
