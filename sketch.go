package streamjoin

import (
	"github.com/axiomhq/hyperloglog"
)

// CardinalitySketch estimates the number of distinct keys seen, used by
// SampleState to compare build-cost candidates and by BuildState to size
// each partition's index table up front (§4.3, §4.4).
type CardinalitySketch struct {
	sk *hyperloglog.Sketch
}

// NewCardinalitySketch creates an empty sketch.
func NewCardinalitySketch() *CardinalitySketch {
	return &CardinalitySketch{sk: hyperloglog.New14()}
}

// Add folds one row's key hash into the sketch. The value first goes
// through a bijective 64-bit mixer, since the sketch picks registers from
// the top bits and an input with poorly spread high bits (a small integer)
// would otherwise land every value in one register.
func (c *CardinalitySketch) Add(hash uint64) {
	h := hash
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	c.sk.InsertHash(h)
}

// Estimate returns the current distinct-count estimate.
func (c *CardinalitySketch) Estimate() uint64 {
	return c.sk.Estimate()
}

// Merge folds other's observations into c. Used to combine per-worker
// sketches for one partition at finalize (§4.4 "combine per-worker
// sketches").
func (c *CardinalitySketch) Merge(other *CardinalitySketch) error {
	if other == nil {
		return nil
	}
	return c.sk.Merge(other.sk)
}

// extrapolatedCardinality extrapolates a sample-based estimate to the true
// row count, per §4.3: estimate * (true_len / min(true_len, SAMPLE_LIMIT)).
func extrapolatedCardinality(estimate uint64, trueLen, sampleLimit int) float64 {
	denom := trueLen
	if sampleLimit < denom {
		denom = sampleLimit
	}
	if denom <= 0 {
		return float64(estimate)
	}
	return float64(estimate) * (float64(trueLen) / float64(denom))
}
