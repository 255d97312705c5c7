package streamjoin

// JoinHow selects one of the four relational join semantics this operator
// implements.
type JoinHow uint8

const (
	Inner JoinHow = iota
	LeftOuter
	RightOuter
	FullOuter
)

func (h JoinHow) String() string {
	switch h {
	case Inner:
		return "Inner"
	case LeftOuter:
		return "Left"
	case RightOuter:
		return "Right"
	case FullOuter:
		return "Full"
	default:
		return "Unknown"
	}
}

// MaintainOrder controls which side(s) of the join must preserve input row
// order in the output (§4.7).
type MaintainOrder uint8

const (
	MaintainNone MaintainOrder = iota
	MaintainLeft
	MaintainRight
	MaintainLeftRight
	MaintainRightLeft
)

// JoinArgs configures one join's semantics (§6 construction input).
type JoinArgs struct {
	How           JoinHow
	Suffix        string
	Coalesce      bool
	NullsEqual    bool
	MaintainOrder MaintainOrder
}

// DefaultJoinArgs returns an inner join with the conventional "_right"
// suffix, no coalescing, and no ordering guarantee.
func DefaultJoinArgs() JoinArgs {
	return JoinArgs{How: Inner, Suffix: "_right", NullsEqual: false}
}

// emitUnmatchedBuild reports whether this join ever needs to enumerate
// build-side rows that no probe row matched (§4.5.1).
func emitUnmatchedBuild(args JoinArgs, leftIsBuild bool) bool {
	if leftIsBuild {
		return args.How == LeftOuter || args.How == FullOuter
	}
	return args.How == RightOuter || args.How == FullOuter
}

// emitUnmatchedProbe reports whether this join emits probe-side rows that
// matched nothing (the null-build-columns case).
func emitUnmatchedProbe(args JoinArgs, leftIsBuild bool) bool {
	return emitUnmatchedBuild(args, !leftIsBuild)
}
