package exec

import "incresql/internal/types"

// LimitExec skips Offset rows by frequency-weighted count, then emits
// until cumulative positive freq reaches Limit (spec.md 4.8). A row
// whose own frequency straddles the offset or limit boundary is emitted
// with its frequency clipped to the remaining budget rather than
// skipped or emitted whole, so the net frequency the caller observes
// still matches exactly Offset/Limit rows' worth of multiplicity.
type LimitExec struct {
	offset   int64
	limit    int64
	hasLimit bool
	source   Executor

	row     types.Row
	freq    types.Frequency
	ok      bool
	limited int64 // cumulative positive freq emitted so far
	done    bool
}

func NewLimit(offset, limit int64, hasLimit bool, source Executor) *LimitExec {
	return &LimitExec{offset: offset, limit: limit, hasLimit: hasLimit, source: source}
}

func (l *LimitExec) Advance() error {
	l.ok = false
	if l.done {
		return nil
	}
	if l.hasLimit && l.limited >= l.limit {
		l.done = true
		return nil
	}
	for {
		row, freq, ok, err := Next(l.source)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if freq <= 0 {
			// Retractions aren't budgeted by Offset/Limit; pass through
			// once past the point a positive-freq row would have
			// satisfied the offset.
			if l.offset > 0 {
				continue
			}
			l.row, l.freq, l.ok = row, freq, true
			return nil
		}
		f := int64(freq)
		if l.offset > 0 {
			if f <= l.offset {
				l.offset -= f
				continue
			}
			f -= l.offset
			l.offset = 0
		}
		if l.hasLimit {
			remaining := l.limit - l.limited
			if remaining <= 0 {
				l.done = true
				return nil
			}
			if f > remaining {
				f = remaining
			}
		}
		l.limited += f
		l.row, l.freq, l.ok = row, types.Frequency(f), true
		return nil
	}
}

func (l *LimitExec) Get() (types.Row, types.Frequency, bool) {
	if !l.ok {
		return nil, 0, false
	}
	return l.row, l.freq, true
}

func (l *LimitExec) ColumnCount() int { return l.source.ColumnCount() }
