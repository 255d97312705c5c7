package streamjoin

// HashKeys is the hashed projection of one morsel's key columns: per-row
// hashes sufficient to estimate cardinality, partition deterministically,
// and probe an IndexTable (§3).
type HashKeys struct {
	cols       []*Column
	hashes     []uint64
	hasNull    []bool // hasNull[i]: row i has >=1 null key component and nullsEqual is false (never set when nullsEqual)
	nullsEqual bool
}

// NewHashKeysFromFrame computes HashKeys for df's rows, mirroring
// HashKeys.from_df (§6). df must already be projected down to just the key
// columns, in key-selector order, by keyFrame.
func NewHashKeysFromFrame(df *Frame, nullsEqual bool) *HashKeys {
	cols := make([]*Column, df.Width())
	for i := range cols {
		cols[i] = df.Column(i)
	}
	n := df.Height()
	hashes := make([]uint64, n)
	hasNull := make([]bool, n)
	anyNull := false
	for r := 0; r < n; r++ {
		h, valid := hashRow(cols, r, nullsEqual)
		hashes[r] = h
		if !valid {
			hasNull[r] = true
			anyNull = true
		} else if !nullsEqual {
			for _, c := range cols {
				if !c.IsValid(r) {
					hasNull[r] = true
					anyNull = true
					break
				}
			}
		}
	}
	if !anyNull {
		hasNull = nil
	}
	return &HashKeys{cols: cols, hashes: hashes, hasNull: hasNull, nullsEqual: nullsEqual}
}

// Len returns the number of rows.
func (hk *HashKeys) Len() int { return len(hk.hashes) }

// Hash returns the hash of row i.
func (hk *HashKeys) Hash(i int) uint64 { return hk.hashes[i] }

// HasNullKey reports whether row i has a null key component that makes it
// unmatchable; it is always false when nulls compare equal.
func (hk *HashKeys) HasNullKey(i int) bool {
	if hk.hasNull == nil {
		return false
	}
	return hk.hasNull[i]
}

// Equal reports whether row a of hk equals row b of other under hk's
// nullsEqual policy (used by the probe-side exact-match verification after
// a hash hit).
func (hk *HashKeys) Equal(a int, other *HashKeys, b int) bool {
	return rowsEqual(hk.cols, a, other.cols, b, hk.nullsEqual)
}

// GenPartitionIdxs assigns each row to a partition via partitioner, appends
// row indices into outPerPartition[p], and folds the row's hash into
// sketches[p]. When includeNulls is false, rows with a null key component
// are skipped entirely (they can never match and track_unmatchable is not
// in effect); §4.4 step 3 / §4.5.1 step 3.
func (hk *HashKeys) GenPartitionIdxs(partitioner *HashPartitioner, outPerPartition [][]int32, sketches []*CardinalitySketch, includeNulls bool) {
	for r, h := range hk.hashes {
		if hk.HasNullKey(r) && !includeNulls {
			continue
		}
		p := partitioner.Partition(h)
		outPerPartition[p] = append(outPerPartition[p], int32(r))
		if sketches != nil {
			sketches[p].Add(h)
		}
	}
}

// Gather returns the subset of hk at the given row indices, preserving
// order and allowing repeats.
func (hk *HashKeys) Gather(idxs []int32) *HashKeys {
	hashes := make([]uint64, len(idxs))
	var hasNull []bool
	for i, idx := range idxs {
		hashes[i] = hk.hashes[idx]
		if hk.HasNullKey(int(idx)) {
			if hasNull == nil {
				hasNull = make([]bool, len(idxs))
			}
			hasNull[i] = true
		}
	}
	cols := make([]*Column, len(hk.cols))
	for i, c := range hk.cols {
		cols[i] = c.gather(idxs)
	}
	return &HashKeys{cols: cols, hashes: hashes, hasNull: hasNull, nullsEqual: hk.nullsEqual}
}

// SketchCardinality folds every row's hash into sketch, excluding null-key
// rows (they don't contribute to the distinct non-null key count the
// build-cost model estimates over), per §4.3.
func (hk *HashKeys) SketchCardinality(sketch *CardinalitySketch) {
	for r, h := range hk.hashes {
		if hk.HasNullKey(r) {
			continue
		}
		sketch.Add(h)
	}
}
