package streamjoin

import "fmt"

// keyColPlaceholder names the reserved placeholder column a Full-outer
// coalesced key is staged under before postprocessJoin merges it with the
// kept side's column (§4.1).
func keyColPlaceholder(i int) string {
	return fmt.Sprintf("__COALESCE_KEYCOL%d", i)
}

// synthKeyColName names the i-th positional key selector's synthetic
// column when evaluating key expressions, even across duplicate source
// names (§4 SUPPLEMENTED FEATURES item 5).
func synthKeyColName(i int) string {
	return fmt.Sprintf("__POLARS_KEYCOL_%d", i)
}

// PayloadEntry is one Option<name> slot of a payload selector: Keep=false
// means the source column is dropped; Keep=true means it survives under
// Name.
type PayloadEntry struct {
	Keep bool
	Name string
}

// payloadSelector computes, for each column of thisSchema (at its
// position), whether it survives into the join output and under what name
// (§4.1). otherSchema is the opposite side's schema (post any earlier
// renaming is irrelevant here; both sides are computed from their original
// schemas). thisKeySchema holds the key columns of this side. isLeft
// indicates whether thisSchema is the left side.
func payloadSelector(thisSchema, otherSchema, thisKeySchema *Schema, isLeft bool, args JoinArgs) ([]PayloadEntry, error) {
	out := make([]PayloadEntry, thisSchema.Len())
	for i, name := range thisSchema.Names() {
		if args.Coalesce && thisKeySchema.Contains(name) {
			kept := isLeft == (args.How != RightOuter)
			switch {
			case kept:
				out[i] = PayloadEntry{Keep: true, Name: name}
			case args.How == FullOuter:
				out[i] = PayloadEntry{Keep: true, Name: keyColPlaceholder(i)}
			default:
				out[i] = PayloadEntry{Keep: false}
			}
			continue
		}

		if isLeft || !otherSchema.Contains(name) {
			out[i] = PayloadEntry{Keep: true, Name: name}
			continue
		}

		suffixed := name + args.Suffix
		if otherSchema.Contains(suffixed) || thisSchema.Contains(suffixed) {
			return nil, newSchemaDuplicateError(suffixed)
		}
		out[i] = PayloadEntry{Keep: true, Name: suffixed}
	}
	return out, nil
}

// applyPayloadSelector projects df through sel, dropping columns whose
// entry is Keep=false and renaming the rest. A zero-width result still
// reports df's row count, so downstream hstack/height bookkeeping stays
// correct even when a side contributes no payload columns (§4 item 6).
func applyPayloadSelector(df *Frame, sel []PayloadEntry) *Frame {
	var cols []*Column
	for i, e := range sel {
		if !e.Keep {
			continue
		}
		c := df.Column(i)
		if c.name != e.Name {
			c = c.rename(e.Name)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return newZeroWidthFrame(df.Height())
	}
	f, err := NewFrame(cols...)
	if err != nil {
		invariantf("applyPayloadSelector: %v", err)
	}
	return f
}

// postprocessJoin applies the Full+coalesce key merge (§4.1
// postprocess_join): for each left key at position i, the output column
// named leftKeyNames[i] is merged first-non-null with the staged
// __COALESCE_KEYCOLi placeholder, and the placeholder is dropped. All other
// columns pass through unchanged. A no-op unless How==Full && Coalesce.
func postprocessJoin(df *Frame, args JoinArgs, leftKeyNames []string) *Frame {
	if !(args.How == FullOuter && args.Coalesce) {
		return df
	}
	cols := make([]*Column, 0, df.Width())
	for i, name := range df.Columns() {
		if isCoalescePlaceholder(name) {
			continue
		}
		keyPos := indexOf(leftKeyNames, name)
		if keyPos < 0 {
			cols = append(cols, df.Column(i))
			continue
		}
		ph := df.ColumnByName(keyColPlaceholder(keyPos))
		if ph == nil {
			cols = append(cols, df.Column(i))
			continue
		}
		cols = append(cols, coalesceFirstNonNull(df.Column(i), ph))
	}
	f, err := NewFrame(cols...)
	if err != nil {
		invariantf("postprocessJoin: %v", err)
	}
	return f
}

func isCoalescePlaceholder(name string) bool {
	return len(name) > len("__COALESCE_KEYCOL") && name[:len("__COALESCE_KEYCOL")] == "__COALESCE_KEYCOL"
}

func indexOf(names []string, target string) int {
	for i, n := range names {
		if n == target {
			return i
		}
	}
	return -1
}

// coalesceFirstNonNull merges two same-length, same-dtype columns under
// a.name, preferring a's value and falling back to b's when a is null; the
// result is null only when both are null.
func coalesceFirstNonNull(a, b *Column) *Column {
	n := a.Len()
	out := fullNullLike(a.dtype, a.name, n)
	anyValid := false
	for i := 0; i < n; i++ {
		if a.IsValid(i) {
			copyScalar(out, i, a, i)
			out.valid[i] = true
			anyValid = true
		} else if b.IsValid(i) {
			copyScalar(out, i, b, i)
			out.valid[i] = true
			anyValid = true
		}
	}
	if !anyValid {
		return out
	}
	allValid := true
	for _, v := range out.valid {
		if !v {
			allValid = false
			break
		}
	}
	if allValid {
		out.valid = nil
	}
	return out
}
