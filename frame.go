package streamjoin

// Frame and Column are the dataframe primitive the join operator is built
// against. Per the spec this primitive is an external collaborator; the
// teacher's own version (`galleon.Series`/`galleon.DataFrame`) is backed by
// CGO calls into a Zig-compiled Arrow engine, which needs a native toolchain
// this environment doesn't have. The teacher's own join.go already carries a
// pure-Go "fallback" path for non-accelerated cases (performInnerJoinGo,
// valuesEqual's non-SIMD branch); this type generalizes that fallback path
// into the only path, keeping the teacher's column-oriented method names
// (Height, Width, ColumnByName, ...) and slice-getter shape (Float64(),
// Int64(), Strings(), Bool()).

// Column is a single typed, nullable column of values.
type Column struct {
	name    string
	dtype   DType
	f64     []float64
	f32     []float32
	i64     []int64
	i32     []int32
	boolean []bool
	str     []string
	valid   []bool // nil means "no nulls"
}

func (c *Column) Name() string  { return c.name }
func (c *Column) DType() DType  { return c.dtype }
func (c *Column) Len() int {
	switch c.dtype {
	case Float64:
		return len(c.f64)
	case Float32:
		return len(c.f32)
	case Int64:
		return len(c.i64)
	case Int32:
		return len(c.i32)
	case Bool:
		return len(c.boolean)
	default:
		return len(c.str)
	}
}

func (c *Column) Float64() []float64 { return c.f64 }
func (c *Column) Float32() []float32 { return c.f32 }
func (c *Column) Int64() []int64     { return c.i64 }
func (c *Column) Int32() []int32     { return c.i32 }
func (c *Column) Bool() []bool       { return c.boolean }
func (c *Column) Strings() []string  { return c.str }

// IsValid reports whether row i is non-null. A column with no valid mask is
// never null.
func (c *Column) IsValid(i int) bool {
	if c.valid == nil {
		return true
	}
	return c.valid[i]
}

// HasNulls reports whether any row in the column is null.
func (c *Column) HasNulls() bool { return c.valid != nil }

func NewColumnFloat64(name string, data []float64) *Column {
	return &Column{name: name, dtype: Float64, f64: data}
}

func NewColumnFloat32(name string, data []float32) *Column {
	return &Column{name: name, dtype: Float32, f32: data}
}

func NewColumnInt64(name string, data []int64) *Column {
	return &Column{name: name, dtype: Int64, i64: data}
}

func NewColumnInt32(name string, data []int32) *Column {
	return &Column{name: name, dtype: Int32, i32: data}
}

func NewColumnBool(name string, data []bool) *Column {
	return &Column{name: name, dtype: Bool, boolean: data}
}

func NewColumnString(name string, data []string) *Column {
	return &Column{name: name, dtype: String, str: data}
}

// NewColumnInt64WithNulls creates a nullable Int64 column; valid[i] == false
// means row i is null (its data slot is ignored).
func NewColumnInt64WithNulls(name string, data []int64, valid []bool) *Column {
	return &Column{name: name, dtype: Int64, i64: data, valid: valid}
}

func NewColumnStringWithNulls(name string, data []string, valid []bool) *Column {
	return &Column{name: name, dtype: String, str: data, valid: valid}
}

// rename returns a shallow copy of c under a new name.
func (c *Column) rename(name string) *Column {
	cp := *c
	cp.name = name
	return &cp
}

// fullNullLike returns an n-row, all-null column of the given dtype.
func fullNullLike(dtype DType, name string, n int) *Column {
	valid := make([]bool, n)
	switch dtype {
	case Float64:
		return &Column{name: name, dtype: Float64, f64: make([]float64, n), valid: valid}
	case Float32:
		return &Column{name: name, dtype: Float32, f32: make([]float32, n), valid: valid}
	case Int64:
		return &Column{name: name, dtype: Int64, i64: make([]int64, n), valid: valid}
	case Int32:
		return &Column{name: name, dtype: Int32, i32: make([]int32, n), valid: valid}
	case Bool:
		return &Column{name: name, dtype: Bool, boolean: make([]bool, n), valid: valid}
	default:
		return &Column{name: name, dtype: String, str: make([]string, n), valid: valid}
	}
}

// gather returns a new column containing rows src[idxs[i]] for each i; a
// negative index produces a null row (used for left/right/full outer joins'
// unmatched side, mirroring the teacher's buildJoinColumn indices==-1
// convention).
func (c *Column) gather(idxs []int32) *Column {
	n := len(idxs)
	out := fullNullLike(c.dtype, c.name, n)
	switch c.dtype {
	case Float64:
		for i, idx := range idxs {
			if idx >= 0 {
				out.f64[i] = c.f64[idx]
				out.valid[i] = c.IsValid(int(idx))
			}
		}
	case Float32:
		for i, idx := range idxs {
			if idx >= 0 {
				out.f32[i] = c.f32[idx]
				out.valid[i] = c.IsValid(int(idx))
			}
		}
	case Int64:
		for i, idx := range idxs {
			if idx >= 0 {
				out.i64[i] = c.i64[idx]
				out.valid[i] = c.IsValid(int(idx))
			}
		}
	case Int32:
		for i, idx := range idxs {
			if idx >= 0 {
				out.i32[i] = c.i32[idx]
				out.valid[i] = c.IsValid(int(idx))
			}
		}
	case Bool:
		for i, idx := range idxs {
			if idx >= 0 {
				out.boolean[i] = c.boolean[idx]
				out.valid[i] = c.IsValid(int(idx))
			}
		}
	default:
		for i, idx := range idxs {
			if idx >= 0 {
				out.str[i] = c.str[idx]
				out.valid[i] = c.IsValid(int(idx))
			}
		}
	}
	if !out.HasNulls() {
		return out
	}
	// Collapse an all-valid mask back to "no nulls", matching the teacher's
	// convention that a nil valid slice means "definitely no nulls".
	anyInvalid := false
	for _, v := range out.valid {
		if !v {
			anyInvalid = true
			break
		}
	}
	if !anyInvalid {
		out.valid = nil
	}
	return out
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	cols   []*Column
	byName map[string]int
	height int
}

// NewFrame builds a Frame from columns, which must all share the same
// length (zero columns is allowed; its height is 0 unless overridden by
// newZeroWidthFrame / a zero-width selection that must preserve height).
func NewFrame(cols ...*Column) (*Frame, error) {
	height := 0
	if len(cols) > 0 {
		height = cols[0].Len()
	}
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.Len() != height {
			return nil, errNewf("column %q has length %d, expected %d", c.name, c.Len(), height)
		}
		byName[c.name] = i
	}
	return &Frame{cols: cols, byName: byName, height: height}, nil
}

// newZeroWidthFrame returns a width-0 frame that still reports height rows,
// per §4 "select_payload ... maintain height of zero-width dataframes".
func newZeroWidthFrame(height int) *Frame {
	return &Frame{byName: map[string]int{}, height: height}
}

func emptyFrameWithSchema(schema *Schema) *Frame {
	cols := make([]*Column, schema.Len())
	for i, name := range schema.Names() {
		cols[i] = fullNullLike(schema.DTypes()[i], name, 0)
		cols[i].valid = nil
	}
	f, err := NewFrame(cols...)
	if err != nil {
		invariantf("emptyFrameWithSchema: %v", err)
	}
	return f
}

// fullNullFrame returns a frame of schema's columns, all null, with n rows.
func fullNullFrame(schema *Schema, n int) *Frame {
	cols := make([]*Column, schema.Len())
	for i, name := range schema.Names() {
		cols[i] = fullNullLike(schema.DTypes()[i], name, n)
	}
	f, err := NewFrame(cols...)
	if err != nil {
		invariantf("fullNullFrame: %v", err)
	}
	return f
}

func (f *Frame) Height() int { return f.height }
func (f *Frame) Width() int  { return len(f.cols) }

func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.name
	}
	return names
}

func (f *Frame) Column(i int) *Column { return f.cols[i] }

func (f *Frame) ColumnByName(name string) *Column {
	idx, ok := f.byName[name]
	if !ok {
		return nil
	}
	return f.cols[idx]
}

// Schema returns the frame's schema.
func (f *Frame) Schema() *Schema {
	names := make([]string, len(f.cols))
	dtypes := make([]DType, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.name
		dtypes[i] = c.dtype
	}
	s, _ := NewSchema(names, dtypes)
	return s
}

// WithColumn appends a column, returning a new Frame (columns are never
// mutated in place once built, matching the "deep-owned, no shared-buffer
// views" build-side invariant in spec §3).
func (f *Frame) WithColumn(c *Column) *Frame {
	cols := append(append([]*Column{}, f.cols...), c)
	out, err := NewFrame(cols...)
	if err != nil {
		invariantf("WithColumn: %v", err)
	}
	return out
}

// hstack horizontally concatenates other's columns onto f, returning a new
// Frame. Both must have the same height.
func (f *Frame) hstack(other *Frame) *Frame {
	cols := append(append([]*Column{}, f.cols...), other.cols...)
	height := f.height
	if other.height > height {
		height = other.height
	}
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		byName[c.name] = i
	}
	return &Frame{cols: cols, byName: byName, height: height}
}

// gather returns a new Frame with rows selected (and possibly repeated, or
// null-filled for index -1) by idxs.
func (f *Frame) gather(idxs []int32) *Frame {
	if f.Width() == 0 {
		return newZeroWidthFrame(len(idxs))
	}
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.gather(idxs)
	}
	out, err := NewFrame(cols...)
	if err != nil {
		invariantf("gather: %v", err)
	}
	return out
}

// slice returns rows at the given indices (all non-negative), used for
// partitioning and for probe-side gathers where every index is valid.
func (f *Frame) slice(idxs []int32) *Frame {
	return f.gather(idxs)
}

// vconcat vertically concatenates frames sharing a schema. Matches the
// teacher's `accumulate_dataframes_vertical_unchecked` (no schema checks in
// the hot path; callers are trusted to pass aligned frames, same as the
// original's "unchecked" naming signals).
func vconcat(frames []*Frame) *Frame {
	if len(frames) == 0 {
		return newZeroWidthFrame(0)
	}
	if len(frames) == 1 {
		return frames[0]
	}
	width := frames[0].Width()
	total := 0
	for _, f := range frames {
		total += f.Height()
	}
	if width == 0 {
		return newZeroWidthFrame(total)
	}
	cols := make([]*Column, width)
	for ci := 0; ci < width; ci++ {
		dtype := frames[0].cols[ci].dtype
		name := frames[0].cols[ci].name
		merged := fullNullLike(dtype, name, total)
		offset := 0
		anyNull := false
		for _, f := range frames {
			src := f.cols[ci]
			n := src.Len()
			for r := 0; r < n; r++ {
				copyScalar(merged, offset+r, src, r)
				if !src.IsValid(r) {
					anyNull = true
				}
				merged.valid[offset+r] = src.IsValid(r)
			}
			offset += n
		}
		if !anyNull {
			merged.valid = nil
		}
		cols[ci] = merged
	}
	out, err := NewFrame(cols...)
	if err != nil {
		invariantf("vconcat: %v", err)
	}
	return out
}

func copyScalar(dst *Column, dstIdx int, src *Column, srcIdx int) {
	switch dst.dtype {
	case Float64:
		dst.f64[dstIdx] = src.f64[srcIdx]
	case Float32:
		dst.f32[dstIdx] = src.f32[srcIdx]
	case Int64:
		dst.i64[dstIdx] = src.i64[srcIdx]
	case Int32:
		dst.i32[dstIdx] = src.i32[srcIdx]
	case Bool:
		dst.boolean[dstIdx] = src.boolean[srcIdx]
	default:
		dst.str[dstIdx] = src.str[srcIdx]
	}
}

// rowEqual compares row a of f against row b of other across all columns,
// position by position. Nothing in the package calls it.
func rowEqual(f *Frame, a int, other *Frame, b int) bool {
	if f.Width() != other.Width() {
		return false
	}
	for i := range f.cols {
		ca, cb := f.cols[i], other.cols[i]
		if ca.IsValid(a) != cb.IsValid(b) {
			return false
		}
		if !ca.IsValid(a) {
			continue
		}
		switch ca.dtype {
		case Float64:
			if ca.f64[a] != cb.f64[b] {
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
