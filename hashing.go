package streamjoin

import (
	"encoding/binary"
	"hash/maphash"
	"math"
)

// randomState seeds the row hasher so repeated runs don't produce
// adversarially-colliding hashes (mirrors the teacher's fnvHashString use of
// a fixed basis, generalized to a per-process random seed per
// HashKeys.from_df's `random_state` parameter).
var randomState = maphash.MakeSeed()

// hashRow produces a 64-bit hash of one row across the given key columns,
// honoring nullsEqual: a null component contributes a null tag byte to the
// hash, and when nullsEqual is false any null key component also makes the
// valid return false, marking the row as one that never matches.
func hashRow(cols []*Column, row int, nullsEqual bool) (h uint64, valid bool) {
	var buf [8]byte
	var hh maphash.Hash
	hh.SetSeed(randomState)
	valid = true
	for _, c := range cols {
		if !c.IsValid(row) {
			if !nullsEqual {
				valid = false
			}
			hh.WriteByte(0) // null tag
			continue
		}
		hh.WriteByte(1)
		switch c.dtype {
		case Float64:
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c.f64[row]))
			hh.Write(buf[:8])
		case Float32:
			binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(c.f32[row]))
			hh.Write(buf[:4])
		case Int64:
			binary.LittleEndian.PutUint64(buf[:], uint64(c.i64[row]))
			hh.Write(buf[:8])
		case Int32:
			binary.LittleEndian.PutUint32(buf[:4], uint32(c.i32[row]))
			hh.Write(buf[:4])
		case Bool:
			if c.boolean[row] {
				hh.WriteByte(1)
			} else {
				hh.WriteByte(0)
			}
		default:
			hh.WriteString(c.str[row])
		}
	}
	return hh.Sum64(), valid
}

// rowsEqual compares row a of colsA against row b of colsB for key equality,
// honoring nullsEqual the same way the hot-path probe comparison does: a
// null component never matches unless nullsEqual is set, in which case
// null == null.
func rowsEqual(colsA []*Column, a int, colsB []*Column, b int, nullsEqual bool) bool {
	for i, ca := range colsA {
		cb := colsB[i]
		va, vb := ca.IsValid(a), cb.IsValid(b)
		if !va || !vb {
			if !nullsEqual {
				return false
			}
			if va != vb {
				return false
			}
			continue // both null, nullsEqual: treat as matching
		}
		switch ca.dtype {
		case Float64:
			if ca.f64[a] != cb.f64[b] {
				return false
			}
		case Float32:
			if ca.f32[a] != cb.f32[b] {
				return false
			}
		case Int64:
			if ca.i64[a] != cb.i64[b] {
				return false
			}
		case Int32:
			if ca.i32[a] != cb.i32[b] {
				return false
			}
		case Bool:
			if ca.boolean[a] != cb.boolean[b] {
				return false
			}
		default:
			if ca.str[a] != cb.str[b] {
				return false
			}
		}
	}
	return true
}
