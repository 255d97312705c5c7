package streamjoin

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// NodeState names one phase of the join's overall state machine (§4.7).
type NodeState int32

const (
	StateSample NodeState = iota
	StateBuild
	StateProbe
	StateEmitUnmatchedBuild
	StateEmitUnmatchedBuildInOrder
	StateDone
)

func (s NodeState) String() string {
	switch s {
	case StateSample:
		return "Sample"
	case StateBuild:
		return "Build"
	case StateProbe:
		return "Probe"
	case StateEmitUnmatchedBuild:
		return "EmitUnmatchedBuild"
	case StateEmitUnmatchedBuildInOrder:
		return "EmitUnmatchedBuildInOrder"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// JoinNode is the overall streaming equi-join operator: it wires the two
// input ports and one output port together and drives the
// Sample/Build/Probe/EmitUnmatched state machine (§4.7, C7).
type JoinNode struct {
	params *JoinParams
	state  int32 // NodeState, atomic

	sampleState *SampleState
	buildState  *BuildState
	probeState  *ProbeState

	done       chan struct{}
	cancelOnce sync.Once
}

// NewJoinNode constructs a join node. leftKeyNames/rightKeyNames name the
// key columns each side's (out-of-scope) expression evaluator is assumed
// to have already produced inside every morsel's dataframe (§1 Out of
// scope, §6 Construction input). Returns ErrSchemaDuplicate if a
// right-hand column's suffixed name collides with an existing column on
// either side.
func NewJoinNode(leftSchema, rightSchema *Schema, leftKeyNames, rightKeyNames []string, args JoinArgs) (*JoinNode, error) {
	leftKeySchema, err := projectSchema(leftSchema, leftKeyNames)
	if err != nil {
		return nil, errors.Wrap(err, "left key schema")
	}
	rightKeySchema, err := projectSchema(rightSchema, rightKeyNames)
	if err != nil {
		return nil, errors.Wrap(err, "right key schema")
	}

	leftSel, err := payloadSelector(leftSchema, rightSchema, leftKeySchema, true, args)
	if err != nil {
		return nil, err
	}
	rightSel, err := payloadSelector(rightSchema, leftSchema, rightKeySchema, false, args)
	if err != nil {
		return nil, err
	}

	sampleLimit := sampleLimitFromEnv()
	numPipelines := GetGlobalConfig().numWorkers()
	done := make(chan struct{})

	params := &JoinParams{
		Args:           args,
		LeftSchema:     leftSchema,
		RightSchema:    rightSchema,
		LeftKeyNames:   leftKeyNames,
		RightKeyNames:  rightKeyNames,
		LeftPayloadSel: leftSel,
		RightPayloadSel: rightSel,
		NumPipelines:   numPipelines,
		SampleLimit:    sampleLimit,
		Verbose:        verboseFromEnv(),
		Done:           done,
		Partitioner:    NewHashPartitioner(numPipelines),
	}

	switch args.MaintainOrder {
	case MaintainNone:
		if sampleLimit == 0 {
			params.LeftIsBuild, params.LeftIsBuildKnown = true, true
		}
	case MaintainLeft:
		params.LeftIsBuild, params.LeftIsBuildKnown = false, true
		params.PreserveOrderProbe = true
	case MaintainRight:
		params.LeftIsBuild, params.LeftIsBuildKnown = true, true
		params.PreserveOrderProbe = true
	case MaintainLeftRight:
		params.LeftIsBuild, params.LeftIsBuildKnown = false, true
		params.PreserveOrderBuild = true
		params.PreserveOrderProbe = true
	case MaintainRightLeft:
		params.LeftIsBuild, params.LeftIsBuildKnown = true, true
		params.PreserveOrderBuild = true
		params.PreserveOrderProbe = true
	}

	n := &JoinNode{params: params, done: done}
	if params.LeftIsBuildKnown {
		atomic.StoreInt32(&n.state, int32(StateBuild))
	} else {
		atomic.StoreInt32(&n.state, int32(StateSample))
	}
	return n, nil
}

func projectSchema(schema *Schema, names []string) (*Schema, error) {
	dtypes := make([]DType, len(names))
	for i, n := range names {
		dt, ok := schema.GetDType(n)
		if !ok {
			return nil, errNewf("key column %q not found in schema", n)
		}
		dtypes[i] = dt
	}
	return NewSchema(names, dtypes)
}

// State returns the node's current phase.
func (n *JoinNode) State() NodeState { return NodeState(atomic.LoadInt32(&n.state)) }

func (n *JoinNode) setState(s NodeState) { atomic.StoreInt32(&n.state, int32(s)) }

// Cancel signals that the consumer has abandoned Run's output port and will
// never read from it again. Every goroutine blocked sending downstream
// observes this and returns instead of blocking forever, and the node
// transitions to Done without emitting any further morsels (§4.7, §8
// "Output port signaling Done mid-probe"). Safe to call more than once or
// concurrently with Run.
func (n *JoinNode) Cancel() {
	n.cancelOnce.Do(func() { close(n.done) })
}

// IsMemoryIntensivePipelineBlocker reports whether the node currently holds
// unbounded sample or build state, the signal the scheduler uses to avoid
// over-committing memory to other blocked operators (§4.7, §4 item 4).
func (n *JoinNode) IsMemoryIntensivePipelineBlocker() bool {
	s := n.State()
	return s == StateSample || s == StateBuild
}

// Run drives the full Sample/Build/Probe/EmitUnmatched pipeline to
// completion: it consumes left and right, and produces output morsels on
// the returned channel, which is closed when the node reaches Done.
//
// Every per-worker loop has the teacher's shape: range over recv, process,
// release the consume token. Fan-out across NumPipelines workers reading
// the same upstream channel is ordinary Go channel fan-in/fan-out, not a
// bespoke scheduler: multiple goroutines ranging over one channel already
// distribute its values across themselves.
func (n *JoinNode) Run(left, right <-chan Morsel) <-chan Morsel {
	out := make(chan Morsel)
	go func() {
		defer close(out)
		defer n.setState(StateDone)

		np := n.params.NumPipelines

		if !n.params.LeftIsBuildKnown {
			n.runSample(left, right)
		}
		n.setState(StateBuild)

		buildChan, probeChan := left, right
		if !n.params.LeftIsBuild {
			buildChan, probeChan = right, left
		}

		n.runBuild(np, buildChan)
		n.setState(StateProbe)

		n.runProbe(np, probeChan, out)

		if n.params.EmitUnmatchedBuild() {
			if n.params.PreserveOrderBuild {
				n.setState(StateEmitUnmatchedBuildInOrder)
				n.emitOrderedUnmatched(out)
			} else {
				n.setState(StateEmitUnmatchedBuild)
				NewEmitUnmatchedState(n.probeState).Run(out)
			}
		}
		n.probeState.Close()
	}()
	return out
}

// runSample absorbs both inputs into SampleState until a build-side
// decision is reached, then replays the chosen side's sampled morsels
// synchronously into a fresh BuildState (§4.3 Sink protocol + Handover).
func (n *JoinNode) runSample(left, right <-chan Morsel) {
	sp := &SampleParams{
		SampleLimit:   n.params.SampleLimit,
		LeftKeyNames:  n.params.LeftKeyNames,
		RightKeyNames: n.params.RightKeyNames,
		Verbose:       n.params.Verbose,
		Logger:        Logger(),
	}
	n.sampleState = NewSampleState(sp)

	var g errgroup.Group
	g.Go(func() error { n.sampleState.Sink(true, left); return nil })
	g.Go(func() error { n.sampleState.Sink(false, right); return nil })
	_ = g.Wait()

	decision, ok := n.sampleState.TryTransitionToBuild()
	if !ok {
		invariantf("sampling finished without a build-side decision")
	}
	n.params.LeftIsBuild = decision.leftIsBuild
	n.params.LeftIsBuildKnown = true

	var sampledBuild, sampledProbe *BufferedStream
	if decision.leftIsBuild {
		sampledBuild, sampledProbe = n.sampleState.left.buf, n.sampleState.right.buf
	} else {
		sampledBuild, sampledProbe = n.sampleState.right.buf, n.sampleState.left.buf
	}

	n.buildState = NewBuildState(n.params, sampledProbe)

	np := n.params.NumPipelines
	outs := sampledBuild.Reinsert(np, nil)
	var wg errgroup.Group
	for w, ch := range outs {
		w, ch := w, ch
		wg.Go(func() error {
			n.buildState.PartitionAndSink(w, ch)
			return nil
		})
	}
	_ = wg.Wait()
}

// runBuild fans the build-side input out across np workers and finalizes
// once it's exhausted (§4.4).
func (n *JoinNode) runBuild(np int, buildChan <-chan Morsel) {
	if n.buildState == nil {
		n.buildState = NewBuildState(n.params, nil)
	}
	var g errgroup.Group
	for w := 0; w < np; w++ {
		w := w
		g.Go(func() error {
			n.buildState.PartitionAndSink(w, buildChan)
			return nil
		})
	}
	_ = g.Wait()
	n.probeState = n.buildState.Finalize()
}

// runProbe replays any sampled probe morsels ahead of the live probe
// channel, then fans probing out across np workers (§4.5).
func (n *JoinNode) runProbe(np int, probeChan <-chan Morsel, out chan<- Morsel) {
	outs := n.probeState.SampledProbeMorsels().Reinsert(np, probeChan)
	var g errgroup.Group
	for w, ch := range outs {
		w, ch := w, ch
		g.Go(func() error {
			n.probeState.PartitionAndProbe(w, ch, out)
			return nil
		})
	}
	_ = g.Wait()
}

// emitOrderedUnmatched builds the single ordered unmatched-build dataframe
// and streams it out in morsel-sized pieces with freshly allocated,
// strictly increasing sequence numbers (§4.5.4).
func (n *JoinNode) emitOrderedUnmatched(out chan<- Morsel) {
	df := n.probeState.OrderedUnmatched()
	if df.Height() == 0 {
		return
	}
	size := globalConfig.MorselSize
	if size <= 0 {
		size = 4096
	}
	seq := n.probeState.MaxSeqSent() + 1
	for start := 0; start < df.Height(); start += size {
		end := start + size
		if end > df.Height() {
			end = df.Height()
		}
		idxs := make([]int32, end-start)
		for i := range idxs {
			idxs[i] = int32(start + i)
		}
		sent := trySend(out, Morsel{
			DF:           df.slice(idxs),
			Seq:          seq,
			SourceToken:  NewSourceToken(),
			ConsumeToken: NewConsumeToken(),
		}, n.done)
		if !sent {
			return
		}
		seq++
	}
}
