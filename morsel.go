package streamjoin

// Morsel is the unit of data moved between ports: a column batch tagged
// with a monotonic sequence number and the cooperative stop/backpressure
// tokens that travel with it (§3).
type Morsel struct {
	DF           *Frame
	Seq          Seq
	SourceToken  *SourceToken
	ConsumeToken ConsumeToken
}

// trySend sends m on out, reporting false instead of blocking forever when
// done fires first — the case where a downstream consumer has abandoned the
// output port (e.g. mid-probe) and will never read another morsel (§4.7
// port-state rule, §8 "Output port signaling Done").
func trySend(out chan<- Morsel, m Morsel, done <-chan struct{}) bool {
	select {
	case out <- m:
		return true
	case <-done:
		return false
	}
}
