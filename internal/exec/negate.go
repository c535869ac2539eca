package exec

import "incresql/internal/types"

// NegateFreqExec passes rows through with their frequency sign flipped,
// used to build retraction feeds (spec.md 4.8).
type NegateFreqExec struct {
	source Executor
	row    types.Row
	freq   types.Frequency
	ok     bool
}

func NewNegateFreq(source Executor) *NegateFreqExec {
	return &NegateFreqExec{source: source}
}

func (n *NegateFreqExec) Advance() error {
	n.ok = false
	row, freq, ok, err := Next(n.source)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	n.row, n.freq, n.ok = row, -freq, true
	return nil
}

func (n *NegateFreqExec) Get() (types.Row, types.Frequency, bool) {
	if !n.ok {
		return nil, 0, false
	}
	return n.row, n.freq, true
}

func (n *NegateFreqExec) ColumnCount() int { return n.source.ColumnCount() }
