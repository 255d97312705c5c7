package streamjoin

import "sync/atomic"

// chunkRowRef locates a row by (chunk index, row index within that chunk),
// the addressing scheme an IndexTable hands back from probes and unmatched
// scans so callers can gather from a chunked ProbeTable.df without a
// separate re-chunk.
type chunkRowRef struct {
	chunk  int32
	idx    int32
	global int32 // row offset into the table's flattened chunk sequence
}

// IndexTable is a hash-keyed, chunk-addressed index over one partition's
// build-side keys. It supports inserting build-side key chunks, probing a
// subset of probe-side keys against them with optional match-marking, and
// scanning for keys nobody ever matched (§3 ProbeTable, §6 contract).
type IndexTable struct {
	trackUnmatchable bool

	chunkKeys  []*HashKeys
	chunkStart []int32 // chunkStart[c] = global row offset of chunk c
	totalRows  int32

	index map[uint64][]chunkRowRef

	// matched holds one flag per row (flattened across chunks), set when a
	// probe matches that row. Only allocated when trackUnmatchable, since a
	// join that never emits build-side unmatched rows has no use for marks
	// (§6 "mark matches").
	matched []atomic.Bool

	unmarkedPos int32 // resumable cursor for UnmarkedKeys
}

// NewIndexTable creates an empty table. trackUnmatchable should be true iff
// this join's how/side combination ever needs to enumerate unmatched build
// rows (emit_unmatched_build(), §4.5.1).
func NewIndexTable(trackUnmatchable bool) *IndexTable {
	return &IndexTable{
		trackUnmatchable: trackUnmatchable,
		index:            make(map[uint64][]chunkRowRef),
	}
}

// NewIndexTableLike returns a fresh empty table with the same
// trackUnmatchable policy as t (new_empty_like, §6).
func (t *IndexTable) NewIndexTableLike() *IndexTable {
	return NewIndexTable(t.trackUnmatchable)
}

// Reserve pre-sizes the hash index for approximately n keys. A table that
// already holds keys is left as it is.
func (t *IndexTable) Reserve(n int) {
	if n <= 0 {
		return
	}
	if len(t.index) == 0 {
		t.index = make(map[uint64][]chunkRowRef, n)
	}
}

// NumKeys returns the total number of rows inserted across all chunks.
func (t *IndexTable) NumKeys() int { return int(t.totalRows) }

// InsertKeyChunk appends one chunk of build-side keys to the table,
// indexing every row whose key can match (HasNullKey false). When
// trackUnmatchable, every row, matchable or not, also gets a matched-bit
// slot for later unmatched emission; a row flagged by HasNullKey never
// matches on probe, so it gets only that slot and is never inserted into
// the hash index. Empty chunks are skipped: an empty chunk would desynchronize the
// chunk counter against ProbeTable.df's frame list (§4.4 step 3).
func (t *IndexTable) InsertKeyChunk(keys *HashKeys) {
	n := keys.Len()
	if n == 0 {
		return
	}
	chunk := int32(len(t.chunkKeys))
	start := t.totalRows
	t.chunkKeys = append(t.chunkKeys, keys)
	t.chunkStart = append(t.chunkStart, start)
	t.totalRows += int32(n)

	if t.trackUnmatchable {
		t.matched = append(t.matched, make([]atomic.Bool, n)...)
	}

	for i := 0; i < n; i++ {
		if keys.HasNullKey(i) {
			continue // never a probe match target
		}
		h := keys.Hash(i)
		t.index[h] = append(t.index[h], chunkRowRef{chunk: chunk, idx: int32(i), global: start + int32(i)})
	}
}

// ProbeSubset probes idxs (row positions into probeKeys) against the table,
// appending a global build-row index (or -1 for an unmatched probe row,
// when emitUnmatched) to outTableMatch and the corresponding probe row
// index to outProbeMatch, for every row consumed. It consumes from the
// front of idxs until limit output rows have been reached or idxs is
// exhausted, returning how many input rows it consumed (§4.5.1/4.5.2 "a
// bounded generator"). The limit is checked between probe rows, so the
// matches of the last consumed row can take the output past limit.
func (t *IndexTable) ProbeSubset(probeKeys *HashKeys, idxs []int32, outTableMatch, outProbeMatch *[]int32, markMatches, emitUnmatched bool, limit int) int {
	consumed := 0
	for _, probeRow := range idxs {
		if len(*outProbeMatch) >= limit {
			break
		}
		consumed++

		if probeKeys.HasNullKey(int(probeRow)) {
			if emitUnmatched {
				*outTableMatch = append(*outTableMatch, -1)
				*outProbeMatch = append(*outProbeMatch, probeRow)
			}
			continue
		}

		h := probeKeys.Hash(int(probeRow))
		matchedAny := false
		for _, ref := range t.index[h] {
			if !probeKeys.Equal(int(probeRow), t.chunkKeys[ref.chunk], int(ref.idx)) {
				continue
			}
			matchedAny = true
			if markMatches {
				t.matched[ref.global].Store(true)
			}
			*outTableMatch = append(*outTableMatch, ref.global)
			*outProbeMatch = append(*outProbeMatch, probeRow)
		}
		if !matchedAny && emitUnmatched {
			*outTableMatch = append(*outTableMatch, -1)
			*outProbeMatch = append(*outProbeMatch, probeRow)
		}
	}
	return consumed
}

// locate converts a global row offset into its (chunk, idx) address via
// binary search over chunkStart.
func (t *IndexTable) locate(global int32) (chunk, idx int32) {
	lo, hi := 0, len(t.chunkStart)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.chunkStart[mid] <= global {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return int32(lo), global - t.chunkStart[lo]
}

// UnmarkedKeys returns up to limit (chunk, idx) addresses of rows never
// marked as matched, resuming from wherever the previous call left off
// (§4.5.4, §4.6 "table.unmarked_keys(out, offset, limit)"). An empty
// result means every row has been scanned.
func (t *IndexTable) UnmarkedKeys(limit int) []chunkRowRef {
	if !t.trackUnmatchable {
		return nil
	}
	var out []chunkRowRef
	for int32(len(out)) < int32(limit) && t.unmarkedPos < t.totalRows {
		g := t.unmarkedPos
		t.unmarkedPos++
		if !t.matched[g].Load() {
			chunk, idx := t.locate(g)
			out = append(out, chunkRowRef{chunk: chunk, idx: idx, global: g})
		}
	}
	return out
}

// Reset rewinds the unmarked-keys cursor, used when a caller needs a second
// full pass (not exercised by the node itself, kept for test harnesses).
func (t *IndexTable) Reset() { t.unmarkedPos = 0 }

// ChunkOf returns the HashKeys for chunk c (used by callers reconstructing
// a partition's build-side key columns, e.g. for tests).
func (t *IndexTable) ChunkOf(c int32) *HashKeys { return t.chunkKeys[c] }
