package streamjoin

// JoinParams bundles everything computed once at construction time and
// shared read-only across the Sample/Build/Probe/EmitUnmatched phases: the
// resolved join arguments, both sides' schemas and key column names, the
// payload selectors from C1, and the ordering/partitioning decisions
// derived from maintain_order (§4.7, §6).
//
// Key columns are modeled as a named projection of the input schema: the
// expression evaluator that would normally turn arbitrary expressions into
// a key column is an out-of-scope collaborator (§1), so here a "key
// selector" is simply the column name(s) the morsel's dataframe already
// carries, exactly as if the evaluator had already run and written its
// output under that name; keyFrame projects those columns out and renames
// them to synthetic positional names (synthKeyColName).
type JoinParams struct {
	Args JoinArgs

	LeftSchema, RightSchema         *Schema
	LeftKeyNames, RightKeyNames     []string // key column names as they appear in every input morsel's dataframe
	LeftPayloadSel, RightPayloadSel []PayloadEntry

	NumPipelines int
	SampleLimit  int
	Verbose      bool

	// Done, when non-nil, is closed by the node's consumer to signal that
	// the output port has been abandoned mid-probe; every blocking send on
	// that port must select against it instead of blocking forever (§4.7,
	// §8 "Output port signaling Done").
	Done <-chan struct{}

	// LeftIsBuild is resolved either at construction (maintain_order forces
	// it) or by SampleState.TryTransitionToBuild.
	LeftIsBuild        bool
	LeftIsBuildKnown   bool
	PreserveOrderBuild bool
	PreserveOrderProbe bool

	Partitioner *HashPartitioner
}

// BuildSchema returns the schema of whichever side is the build side.
func (p *JoinParams) BuildSchema() *Schema {
	if p.LeftIsBuild {
		return p.LeftSchema
	}
	return p.RightSchema
}

// ProbeSchema returns the schema of whichever side is the probe side.
func (p *JoinParams) ProbeSchema() *Schema {
	if p.LeftIsBuild {
		return p.RightSchema
	}
	return p.LeftSchema
}

// BuildKeyNames returns the build side's key column names.
func (p *JoinParams) BuildKeyNames() []string {
	if p.LeftIsBuild {
		return p.LeftKeyNames
	}
	return p.RightKeyNames
}

// ProbeKeyNames returns the probe side's key column names.
func (p *JoinParams) ProbeKeyNames() []string {
	if p.LeftIsBuild {
		return p.RightKeyNames
	}
	return p.LeftKeyNames
}

// BuildPayloadSel returns the build side's payload selector.
func (p *JoinParams) BuildPayloadSel() []PayloadEntry {
	if p.LeftIsBuild {
		return p.LeftPayloadSel
	}
	return p.RightPayloadSel
}

// ProbePayloadSel returns the probe side's payload selector.
func (p *JoinParams) ProbePayloadSel() []PayloadEntry {
	if p.LeftIsBuild {
		return p.RightPayloadSel
	}
	return p.LeftPayloadSel
}

// BuildPayloadSchema computes the schema of the build side after its
// payload selector is applied, used to construct empty/full-null frames
// (e.g. an empty partition's df, or the probe-side null fill).
func BuildPayloadSchema(schema *Schema, sel []PayloadEntry) *Schema {
	var names []string
	var dtypes []DType
	for i, e := range sel {
		if !e.Keep {
			continue
		}
		names = append(names, e.Name)
		dtypes = append(dtypes, schema.DTypes()[i])
	}
	s, err := NewSchema(names, dtypes)
	if err != nil {
		invariantf("BuildPayloadSchema: %v", err)
	}
	return s
}

// EmitUnmatchedBuild reports whether this join must enumerate build rows no
// probe row matched.
func (p *JoinParams) EmitUnmatchedBuild() bool {
	return emitUnmatchedBuild(p.Args, p.LeftIsBuild)
}

// EmitUnmatchedProbe reports whether this join must emit probe rows that
// matched nothing.
func (p *JoinParams) EmitUnmatchedProbe() bool {
	return emitUnmatchedProbe(p.Args, p.LeftIsBuild)
}

// keyFrame projects df down to just its key columns, in the order given by
// names — the stand-in for the out-of-scope key-expression evaluator. Each
// selected column is renamed to its positional synthetic name
// (synthKeyColName) so hashing and equality downstream never depend on the
// original column names, even when two key selectors happen to reference
// the same underlying name (§4 SUPPLEMENTED FEATURES item 5).
func keyFrame(df *Frame, names []string) *Frame {
	cols := make([]*Column, len(names))
	for i, n := range names {
		c := df.ColumnByName(n)
		if c == nil {
			invariantf("key column %q missing from morsel", n)
		}
		cols[i] = c.rename(synthKeyColName(i))
	}
	f, err := NewFrame(cols...)
	if err != nil {
		invariantf("keyFrame: %v", err)
	}
	return f
}
