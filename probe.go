package streamjoin

import (
	"math"
	"sync/atomic"
)

// ProbeTable is one partition's materialized build side: an index over its
// keys plus the concatenated payload dataframe the index addresses into
// (§3).
type ProbeTable struct {
	Table       *IndexTable
	DF          *Frame
	ChunkSeqIDs []Seq // populated only when PreserveOrderBuild
}

// ProbeState holds all partitions' ProbeTables and drives partition_and_probe
// across incoming probe-side morsels (§4.5).
type ProbeState struct {
	params            *JoinParams
	TablePerPartition []*ProbeTable
	maxSeqSent        int64 // atomic, holds Seq

	sampledProbeMorsels *BufferedStream
}

// MaxSeqSent returns the highest seq emitted downstream so far, the base
// that EmitUnmatched phases offset from (§4.5, §4.6).
func (ps *ProbeState) MaxSeqSent() Seq { return Seq(atomic.LoadInt64(&ps.maxSeqSent)) }

func (ps *ProbeState) bumpMaxSeq(seq Seq) {
	for {
		cur := atomic.LoadInt64(&ps.maxSeqSent)
		if int64(seq) <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&ps.maxSeqSent, cur, int64(seq)) {
			return
		}
	}
}

// SampledProbeMorsels returns the buffer of probe-side morsels absorbed
// during sampling, to be replayed ahead of the live probe-side port.
func (ps *ProbeState) SampledProbeMorsels() *BufferedStream { return ps.sampledProbeMorsels }

// Close drops every partition's ProbeTable payload dataframe in parallel,
// since these can be multi-gigabyte (§3 Lifecycle, §4 SUPPLEMENTED
// FEATURES item 2).
func (ps *ProbeState) Close() {
	parallelEach(len(ps.TablePerPartition), func(i int) {
		ps.TablePerPartition[i] = nil
	})
}

const preserveOrderIdxCol = "__PRESERVE_ORDER_IDX"

// PartitionAndProbe consumes recv on worker workerID, hashing each probe
// morsel's key columns, partitioning its rows, probing every partition's
// table, and sending result morsels on send (§4.5.1). It dispatches to the
// unordered or ordered sub-protocol depending on params.PreserveOrderProbe.
func (ps *ProbeState) PartitionAndProbe(workerID int, recv <-chan Morsel, send chan<- Morsel) {
	p := ps.params
	keyNames := p.ProbeKeyNames()
	sel := p.ProbePayloadSel()
	emitUnmatched := p.EmitUnmatchedProbe()
	markMatches := p.EmitUnmatchedBuild()
	numParts := p.Partitioner.NumPartitions()

	for m := range recv {
		hk := NewHashKeysFromFrame(keyFrame(m.DF, keyNames), p.Args.NullsEqual)
		payload := applyPayloadSelector(m.DF, sel)

		perPartIdxs := make([][]int32, numParts)
		hk.GenPartitionIdxs(p.Partitioner, perPartIdxs, nil, emitUnmatched)

		ps.bumpMaxSeq(m.Seq)

		var ok bool
		if p.PreserveOrderProbe {
			ok = ps.probeOrdered(m, hk, payload, perPartIdxs, markMatches, emitUnmatched, send)
		} else {
			ok = ps.probeUnordered(m, hk, payload, perPartIdxs, markMatches, emitUnmatched, send)
		}
		m.ConsumeToken.Release()
		if !ok {
			return // consumer abandoned the output port (§4.7)
		}
	}
}

// buildOutputRow horizontally stacks build-side and probe-side gathers in
// the join's natural column order (build first when left is build, so
// left columns precede right columns either way) and applies the
// Full+coalesce postprocess (§4.5.2 step "yields the join's natural column
// order").
func (ps *ProbeState) buildOutputRow(buildGather, probeGather *Frame) *Frame {
	var out *Frame
	if ps.params.LeftIsBuild {
		out = buildGather.hstack(probeGather)
	} else {
		out = probeGather.hstack(buildGather)
	}
	return postprocessJoin(out, ps.params.Args, ps.params.LeftKeyNames)
}

// probeUnordered implements §4.5.2: bounded per-partition probes
// accumulated into output morsels of roughly probeLimit rows, flushing
// whatever remains at morsel end. Returns false if the consumer abandoned
// the output port mid-probe (§4.7), in which case the caller must stop.
func (ps *ProbeState) probeUnordered(m Morsel, hk *HashKeys, payload *Frame, perPartIdxs [][]int32, markMatches, emitUnmatched bool, send chan<- Morsel) bool {
	probeLimit := globalConfig.MorselSize
	var acc []*Frame
	accLen := 0
	ok := true

	flush := func() {
		if accLen == 0 || !ok {
			return
		}
		out := vconcat(acc)
		ok = trySend(send, Morsel{DF: out, Seq: m.Seq, SourceToken: m.SourceToken, ConsumeToken: NewConsumeToken()}, ps.params.Done)
		acc = nil
		accLen = 0
	}

	for part, idxs := range perPartIdxs {
		if !ok {
			break
		}
		table := ps.TablePerPartition[part].Table
		df := ps.TablePerPartition[part].DF
		remaining := idxs
		for len(remaining) > 0 && ok {
			var tableMatch, probeMatch []int32
			limit := probeLimit - accLen
			if limit <= 0 {
				flush()
				if !ok {
					break
				}
				limit = probeLimit
			}
			consumed := table.ProbeSubset(hk, remaining, &tableMatch, &probeMatch, markMatches, emitUnmatched, limit)
			remaining = remaining[consumed:]
			if len(tableMatch) == 0 {
				continue
			}
			buildGather := df.gather(tableMatch)
			probeGather := payload.gather(probeMatch)
			row := ps.buildOutputRow(buildGather, probeGather)
			acc = append(acc, row)
			accLen += row.Height()
			if accLen >= probeLimit {
				flush()
			}
		}
	}
	flush()
	return ok
}

// probeOrdered implements §4.5.3: one unbounded probe per partition,
// tagged with the probe row index, concatenated and stable-sorted back
// into the original probe-row order, then emitted as a single morsel.
// Returns false if the consumer abandoned the output port (§4.7).
func (ps *ProbeState) probeOrdered(m Morsel, hk *HashKeys, payload *Frame, perPartIdxs [][]int32, markMatches, emitUnmatched bool, send chan<- Morsel) bool {
	var parts []*Frame
	for part, idxs := range perPartIdxs {
		if len(idxs) == 0 {
			continue
		}
		table := ps.TablePerPartition[part].Table
		df := ps.TablePerPartition[part].DF
		var tableMatch, probeMatch []int32
		table.ProbeSubset(hk, idxs, &tableMatch, &probeMatch, markMatches, emitUnmatched, math.MaxInt32)
		if len(tableMatch) == 0 {
			continue
		}
		buildGather := df.gather(tableMatch)
		probeGather := payload.gather(probeMatch)
		row := ps.buildOutputRow(buildGather, probeGather)
		idxCol := NewColumnInt32(preserveOrderIdxCol, probeMatch)
		parts = append(parts, row.WithColumn(idxCol))
	}
	if len(parts) == 0 {
		return trySend(send, Morsel{DF: newZeroWidthFrame(0), Seq: m.Seq, SourceToken: m.SourceToken, ConsumeToken: NewConsumeToken()}, ps.params.Done)
	}
	merged := vconcat(parts)
	out := stableSortByInt32Col(merged, preserveOrderIdxCol)
	out = dropColumn(out, preserveOrderIdxCol)
	return trySend(send, Morsel{DF: out, Seq: m.Seq, SourceToken: m.SourceToken, ConsumeToken: NewConsumeToken()}, ps.params.Done)
}

// OrderedUnmatched builds one in-memory dataframe of every unmatched
// build-side row across all partitions, ordered by (origin seq, origin row
// index within that chunk), for the PreserveOrderBuild case (§4.5.4).
func (ps *ProbeState) OrderedUnmatched() *Frame {
	probeSchema := BuildPayloadSchema(ps.params.ProbeSchema(), ps.params.ProbePayloadSel())
	var parts []*Frame
	for _, pt := range ps.TablePerPartition {
		refs := pt.Table.UnmarkedKeys(math.MaxInt32)
		if len(refs) == 0 {
			continue
		}
		globals := make([]int32, len(refs))
		seqCol := make([]int64, len(refs))
		idxCol := make([]int32, len(refs))
		for i, r := range refs {
			globals[i] = r.global
			seqCol[i] = int64(pt.ChunkSeqIDs[r.chunk])
			idxCol[i] = r.idx
		}
		buildRows := pt.DF.gather(globals)
		nullOther := fullNullFrame(probeSchema, len(refs))
		row := ps.buildOutputRow(buildRows, nullOther)
		row = row.WithColumn(NewColumnInt64("__SEQ", seqCol))
		row = row.WithColumn(NewColumnInt32("__IDX", idxCol))
		parts = append(parts, row)
	}
	if len(parts) == 0 {
		return newZeroWidthFrame(0)
	}
	merged := vconcat(parts)
	out := stableSortBySeqIdx(merged, "__SEQ", "__IDX")
	out = dropColumn(out, "__SEQ")
	out = dropColumn(out, "__IDX")
	return postprocessJoin(out, ps.params.Args, ps.params.LeftKeyNames)
}
