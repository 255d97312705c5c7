package streamjoin

import "sort"

// dropColumn returns df without the named column (a no-op if absent), used
// to discard the auxiliary ordering columns added for the ordered probe
// and ordered-unmatched-build passes (§4.5.3, §4.5.4).
func dropColumn(df *Frame, name string) *Frame {
	if df.ColumnByName(name) == nil {
		return df
	}
	cols := make([]*Column, 0, df.Width()-1)
	for _, n := range df.Columns() {
		if n == name {
			continue
		}
		cols = append(cols, df.ColumnByName(n))
	}
	if len(cols) == 0 {
		return newZeroWidthFrame(df.Height())
	}
	f, err := NewFrame(cols...)
	if err != nil {
		invariantf("dropColumn: %v", err)
	}
	return f
}

// stableSortByInt32Col returns df reordered by ascending values of its
// named Int32 column, stably (§4.5.3: "stable-sort by that auxiliary
// column, single-threaded").
func stableSortByInt32Col(df *Frame, name string) *Frame {
	col := df.ColumnByName(name)
	n := df.Height()
	order := make([]int32, n)
	for i := range order {
		order[i] = int32(i)
	}
	vals := col.Int32()
	sort.SliceStable(order, func(i, j int) bool {
		return vals[order[i]] < vals[order[j]]
	})
	return df.gather(order)
}

// stableSortBySeqIdx returns df reordered by ascending (seqCol, idxCol),
// stably (§4.5.4: "multi-threaded-stable-sort by (__SEQ, __IDX)" — sorted
// single-threaded here since the row counts involved are the unmatched-row
// tail, not the hot probe path; see the grounding ledger for why this
// doesn't need the extra parallel-sort machinery).
func stableSortBySeqIdx(df *Frame, seqCol, idxCol string) *Frame {
	sc := df.ColumnByName(seqCol).Int64()
	ic := df.ColumnByName(idxCol).Int32()
	n := df.Height()
	order := make([]int32, n)
	for i := range order {
		order[i] = int32(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if sc[a] != sc[b] {
			return sc[a] < sc[b]
		}
		return ic[a] < ic[b]
	})
	return df.gather(order)
}
