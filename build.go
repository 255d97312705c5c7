package streamjoin

import "sort"

// buildFrame is one (seq, dataframe) pair sunk into a build partition,
// aligned with its HashKeys at the same slice position (§3 BuildPartition
// invariant).
type buildFrame struct {
	Seq Seq
	DF  *Frame
}

// BuildPartition accumulates one (worker, partition) bucket's worth of
// build-side rows during the sink phase (§3).
type BuildPartition struct {
	HashKeys []*HashKeys
	Frames   []buildFrame
	Sketch   *CardinalitySketch
}

func newBuildPartition() *BuildPartition {
	return &BuildPartition{Sketch: NewCardinalitySketch()}
}

// BuildState holds one partition bucket per (worker, partition) while
// build-side morsels are being sunk (§4.4).
type BuildState struct {
	params  *JoinParams
	perWorker [][]*BuildPartition // perWorker[w][p]

	// sampledProbeMorsels carries the probe-side morsels absorbed during
	// sampling, to be replayed once Probe starts (§4.3 Handover).
	sampledProbeMorsels *BufferedStream
}

// NewBuildState allocates an empty per-(worker,partition) bucket grid.
func NewBuildState(params *JoinParams, sampledProbeMorsels *BufferedStream) *BuildState {
	n := params.NumPipelines
	perWorker := make([][]*BuildPartition, n)
	for w := range perWorker {
		perWorker[w] = make([]*BuildPartition, params.Partitioner.NumPartitions())
		for p := range perWorker[w] {
			perWorker[w][p] = newBuildPartition()
		}
	}
	if sampledProbeMorsels == nil {
		sampledProbeMorsels = NewBufferedStream()
	}
	return &BuildState{params: params, perWorker: perWorker, sampledProbeMorsels: sampledProbeMorsels}
}

// PartitionAndSink consumes recv on worker workerID, hashing each morsel's
// build-side key columns, computing its payload projection, and scattering
// rows across this worker's partition buckets (§4.4 steps 1-4).
func (b *BuildState) PartitionAndSink(workerID int, recv <-chan Morsel) {
	trackUnmatchable := b.params.EmitUnmatchedBuild()
	keyNames := b.params.BuildKeyNames()
	sel := b.params.BuildPayloadSel()
	numParts := b.params.Partitioner.NumPartitions()
	buckets := b.perWorker[workerID]

	for m := range recv {
		hk := NewHashKeysFromFrame(keyFrame(m.DF, keyNames), b.params.Args.NullsEqual)
		payload := applyPayloadSelector(m.DF, sel)

		// Per-partition row-index scratch comes from the pool (§4.4 step 3):
		// each partition could in principle receive every row of m, so each
		// slot is requested at m.DF.Height() capacity.
		scratch := make([]*Int32Slice, numParts)
		perPartIdxs := make([][]int32, numParts)
		sketches := make([]*CardinalitySketch, numParts)
		for p := range sketches {
			sketches[p] = buckets[p].Sketch
			scratch[p] = getInt32Slice(m.DF.Height())
			perPartIdxs[p] = scratch[p].Data
		}
		hk.GenPartitionIdxs(b.params.Partitioner, perPartIdxs, sketches, trackUnmatchable)

		for p, idxs := range perPartIdxs {
			if len(idxs) == 0 {
				continue
			}
			buckets[p].HashKeys = append(buckets[p].HashKeys, hk.Gather(idxs))
			buckets[p].Frames = append(buckets[p].Frames, buildFrame{Seq: m.Seq, DF: payload.slice(idxs)})
		}
		for _, s := range scratch {
			s.Release()
		}
		m.ConsumeToken.Release()
	}
}

// seqKeysFrame is one (seq, keys, frame) triple gathered across workers at
// finalize time, before an optional seq sort.
type seqKeysFrame struct {
	Seq   Seq
	Keys  *HashKeys
	Frame *Frame
}

// Finalize transposes the per-worker partition grid into per-partition
// ownership and, in parallel across partitions, builds each partition's
// IndexTable and concatenated payload dataframe (§4.4 Finalize).
func (b *BuildState) Finalize() *ProbeState {
	numParts := b.params.Partitioner.NumPartitions()
	tables := make([]*ProbeTable, numParts)
	buildSchema := BuildPayloadSchema(b.params.BuildSchema(), b.params.BuildPayloadSel())
	trackUnmatchable := b.params.EmitUnmatchedBuild()
	preserveOrder := b.params.PreserveOrderBuild

	parallelEach(numParts, func(p int) {
		sketch := NewCardinalitySketch()
		var triples []seqKeysFrame
		for w := range b.perWorker {
			bucket := b.perWorker[w][p]
			_ = sketch.Merge(bucket.Sketch)
			for i, keys := range bucket.HashKeys {
				fr := bucket.Frames[i]
				triples = append(triples, seqKeysFrame{Seq: fr.Seq, Keys: keys, Frame: fr.DF})
			}
		}
		if preserveOrder {
			sort.SliceStable(triples, func(i, j int) bool { return triples[i].Seq < triples[j].Seq })
		}

		table := NewIndexTable(trackUnmatchable)
		table.Reserve(int(sketch.Estimate()) * 5 / 4)

		var frames []*Frame
		var chunkSeqIDs []Seq
		for _, t := range triples {
			if t.Frame.Height() == 0 {
				continue // an empty chunk would desync the table's chunk counter
			}
			table.InsertKeyChunk(t.Keys)
			frames = append(frames, t.Frame)
			if preserveOrder {
				chunkSeqIDs = append(chunkSeqIDs, t.Seq)
			}
		}

		var df *Frame
		if len(frames) == 0 {
			df = emptyFrameWithSchema(buildSchema)
		} else {
			df = vconcat(frames)
		}
		tables[p] = &ProbeTable{Table: table, DF: df, ChunkSeqIDs: chunkSeqIDs}
	})

	return &ProbeState{
		params:              b.params,
		TablePerPartition:   tables,
		sampledProbeMorsels: b.sampledProbeMorsels,
	}
}
