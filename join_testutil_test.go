package streamjoin

import "testing"

// mkFrame builds a Frame from columns, failing the test on error — most
// test setup in this package builds small literal frames and has no
// interest in exercising NewFrame's own validation.
func mkFrame(t *testing.T, cols ...*Column) *Frame {
	t.Helper()
	f, err := NewFrame(cols...)
	if err != nil {
		t.Fatalf("mkFrame: %v", err)
	}
	return f
}

// frameOf builds a Frame without requiring a *testing.T, for helpers that
// run off the main test goroutine (e.g. sample_test.go's sink goroutines)
// where a nil *testing.T would panic on mkFrame's t.Helper() call.
func frameOf(cols ...*Column) *Frame {
	f, err := NewFrame(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// mkMorsel wraps df as a Morsel with a fresh source/consume token pair, the
// shape every test that feeds a JoinNode's ports needs.
func mkMorsel(df *Frame, seq Seq) Morsel {
	return Morsel{
		DF:           df,
		Seq:          seq,
		SourceToken:  NewSourceToken(),
		ConsumeToken: NewConsumeToken(),
	}
}

// sendAll pushes morsels onto ch in order and closes it; the consume token
// is released by whichever sink or worker pulls the morsel out, so the
// sender doesn't need to Wait on it here (these tests drive whole small
// datasets through in one pass, not live backpressure).
func sendAll(ch chan<- Morsel, morsels []Morsel) {
	for _, m := range morsels {
		ch <- m
	}
	close(ch)
}

// collectAll drains every morsel's dataframe from ch until it's closed,
// releasing each morsel's consume token as a downstream consumer would.
func collectAll(ch <-chan Morsel) []*Frame {
	var out []*Frame
	for m := range ch {
		m.ConsumeToken.Release()
		out = append(out, m.DF)
	}
	return out
}

// schemaOf builds a Schema from parallel name/dtype slices, failing the
// test on error.
func schemaOf(t *testing.T, names []string, dtypes []DType) *Schema {
	t.Helper()
	s, err := NewSchema(names, dtypes)
	if err != nil {
		t.Fatalf("schemaOf: %v", err)
	}
	return s
}

// i64col is a terse constructor for non-null int64 test columns.
func i64col(name string, vals ...int64) *Column { return NewColumnInt64(name, vals) }

// strcol is a terse constructor for non-null string test columns.
func strcol(name string, vals ...string) *Column { return NewColumnString(name, vals) }

// intRow reads column name from df row i as an int64, returning (0, false)
// if the row is null, for use in result assertions.
func intRow(df *Frame, name string, i int) (int64, bool) {
	c := df.ColumnByName(name)
	if c == nil || !c.IsValid(i) {
		return 0, false
	}
	return c.Int64()[i], true
}

// strRow reads column name from df row i as a string, returning ("", false)
// if the row is null or column missing.
func strRow(df *Frame, name string, i int) (string, bool) {
	c := df.ColumnByName(name)
	if c == nil || !c.IsValid(i) {
		return "", false
	}
	return c.Strings()[i], true
}

// vconcatAll vertically concatenates a slice of result frames gathered from
// a node's output port into one frame for easier row-by-row assertions.
func vconcatAll(frames []*Frame) *Frame {
	var nonEmpty []*Frame
	for _, f := range frames {
		if f.Width() > 0 {
			nonEmpty = append(nonEmpty, f)
		}
	}
	if len(nonEmpty) == 0 {
		return newZeroWidthFrame(0)
	}
	return vconcat(nonEmpty)
}

// totalHeight sums Height() across frames, treating a zero-width frame's
// reported height as still counting rows (matches the zero-width
// height-preservation invariant in selectors.go).
func totalHeight(frames []*Frame) int {
	n := 0
	for _, f := range frames {
		n += f.Height()
	}
	return n
}
