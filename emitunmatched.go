package streamjoin

// EmitUnmatchedState streams build-side rows no probe row ever matched,
// paired with null columns on the probe side, once probing has finished
// and PreserveOrderBuild is not set (§4.6). When PreserveOrderBuild is set,
// ProbeState.OrderedUnmatched is used instead (§4.5.4).
type EmitUnmatchedState struct {
	params     *JoinParams
	probeState *ProbeState
	nextSeq    Seq
}

// NewEmitUnmatchedState starts sequence numbering just after the highest
// seq the probe phase emitted (§4.6).
func NewEmitUnmatchedState(ps *ProbeState) *EmitUnmatchedState {
	return &EmitUnmatchedState{params: ps.params, probeState: ps, nextSeq: ps.MaxSeqSent() + 1}
}

// Run walks every partition's table sequentially, emitting unmatched build
// rows in morsel-sized batches (§4.6). It honors source_token stop requests
// and waits on each morsel's consume token before producing the next,
// exactly as the bounded EmitUnmatchedBuild state does.
func (e *EmitUnmatchedState) Run(send chan<- Morsel) {
	probeSchema := BuildPayloadSchema(e.params.ProbeSchema(), e.params.ProbePayloadSel())
	morselSize := e.morselSize()

	for _, pt := range e.probeState.TablePerPartition {
		for {
			refs := pt.Table.UnmarkedKeys(morselSize)
			if len(refs) == 0 {
				break
			}
			globals := make([]int32, len(refs))
			for i, r := range refs {
				globals[i] = r.global
			}
			buildRows := pt.DF.gather(globals)
			nullOther := fullNullFrame(probeSchema, len(refs))
			row := e.probeState.buildOutputRow(buildRows, nullOther)

			ct := NewConsumeToken()
			srcToken := NewSourceToken()
			seq := e.nextSeq
			e.nextSeq++

			if !trySend(send, Morsel{DF: row, Seq: seq, SourceToken: srcToken, ConsumeToken: ct}, e.params.Done) {
				return // consumer abandoned the output port (§4.7)
			}
			ct.Wait()
			if srcToken.StopRequested() {
				return
			}
		}
	}
}

// morselSize computes the per-partition UnmarkedKeys limit from the total
// row count across every partition's table, rather than handing out the
// global ideal morsel size directly: total_len/ideal_morsel_size gives the
// ideal morsel count, rounded up to a multiple of NumPipelines so the work
// divides evenly across the fan-out, and the actual per-morsel size is
// total_len divided back down across that many morsels (§4.6).
func (e *EmitUnmatchedState) morselSize() int {
	idealMorselSize := globalConfig.MorselSize
	if idealMorselSize <= 0 {
		idealMorselSize = 4096
	}

	totalLen := 0
	for _, pt := range e.probeState.TablePerPartition {
		totalLen += pt.Table.NumKeys()
	}

	idealMorselCount := totalLen / idealMorselSize
	if idealMorselCount < 1 {
		idealMorselCount = 1
	}

	numPipelines := e.params.NumPipelines
	if numPipelines < 1 {
		numPipelines = 1
	}
	morselCount := nextMultipleOf(idealMorselCount, numPipelines)

	morselSize := ceilDiv(totalLen, morselCount)
	if morselSize < 1 {
		morselSize = 1
	}
	return morselSize
}

// nextMultipleOf rounds n up to the next multiple of k (k must be > 0).
func nextMultipleOf(n, k int) int {
	if n%k == 0 {
		return n
	}
	return (n/k + 1) * k
}

// ceilDiv computes ceil(a/b) for non-negative a and positive b.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
