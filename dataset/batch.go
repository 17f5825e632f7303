package dataset

// Batch holds Steps steps for Rows parallel rows. Row data is only meaningful where Active is set.
type Batch struct {
	Steps, Rows int

	Events     [][]int // [step][row] current event type
	Times      [][]float64
	NextEvents [][]int // [step][row] label: type of the next event
	NextTimes  [][]float64

	Active []bool // row carries data in this batch
	Reset  []bool // row starts a new sequence here, so its recurrent carry must be zeroed

	Samples int // number of active rows
}

func newBatch(steps, rows int) *Batch {
	b := &Batch{
		Steps:      steps,
		Rows:       rows,
		Events:     make([][]int, steps),
		Times:      make([][]float64, steps),
		NextEvents: make([][]int, steps),
		NextTimes:  make([][]float64, steps),
		Active:     make([]bool, rows),
		Reset:      make([]bool, rows),
	}
	for t := 0; t < steps; t++ {
		b.Events[t] = make([]int, rows)
		b.Times[t] = make([]float64, rows)
		b.NextEvents[t] = make([]int, rows)
		b.NextTimes[t] = make([]float64, rows)
		for r := range b.Events[t] {
			b.Events[t][r] = -1
			b.NextEvents[t][r] = -1
		}
	}
	return b
}

func (b *Batch) fill(row int, s Sequence, pos int) {
	for t := 0; t < b.Steps; t++ {
		b.Events[t][row] = s.Events[pos+t]
		b.Times[t][row] = s.Times[pos+t]
		b.NextEvents[t][row] = s.Events[pos+t+1]
		b.NextTimes[t][row] = s.Times[pos+t+1]
	}
	b.Active[row] = true
	b.Samples++
}

// ActiveRows returns the indices of the active rows, in order.
func (b *Batch) ActiveRows() []int {
	retVal := make([]int, 0, b.Samples)
	for r, ok := range b.Active {
		if ok {
			retVal = append(retVal, r)
		}
	}
	return retVal
}

type cursor struct {
	seq, pos int
	live     bool
}

// TrainLoader streams BPTT windows. Each row follows one sequence at a time, advancing
// by Steps events per batch so that the recurrent carry of a row stays meaningful.
type TrainLoader struct {
	d           *Dataset
	rows, steps int

	next int // next sequence to hand out
	cur  []cursor
}

// NewTrainLoader creates a loader with rows parallel streams and windows of steps.
func NewTrainLoader(d *Dataset, rows, steps int) *TrainLoader {
	l := &TrainLoader{d: d, rows: rows, steps: steps}
	l.Reset()
	return l
}

// Reset starts a new epoch.
func (l *TrainLoader) Reset() {
	l.next = 0
	l.cur = make([]cursor, l.rows)
}

// claim moves row r to the next sequence long enough for one window.
func (l *TrainLoader) claim(r int) bool {
	for l.next < len(l.d.Seqs) {
		i := l.next
		l.next++
		if l.d.Seqs[i].Len() > l.steps {
			l.cur[r] = cursor{seq: i, live: true}
			return true
		}
	}
	l.cur[r] = cursor{}
	return false
}

// Next returns the next batch, or false once the epoch is exhausted.
// The final batches of an epoch may have inactive rows.
func (l *TrainLoader) Next() (*Batch, bool) {
	b := borrowBatch(l.steps, l.rows)
	for r := range l.cur {
		c := &l.cur[r]
		if c.live && c.pos+l.steps >= l.d.Seqs[c.seq].Len() {
			c.live = false
		}
		if !c.live {
			if l.next >= len(l.d.Seqs) || !l.claim(r) {
				continue
			}
			b.Reset[r] = true
		}
		b.fill(r, l.d.Seqs[c.seq], c.pos)
		c.pos += l.steps
	}
	if b.Samples == 0 {
		ReturnBatch(b)
		return nil, false
	}
	return b, true
}

// TestLoader produces single step batches covering every transition exactly once.
// Rows walk up to Rows sequences in lock step; once all are exhausted the next group starts.
type TestLoader struct {
	d    *Dataset
	rows int

	group int // first sequence of the current group
	pos   int
}

// NewTestLoader creates a loader with rows parallel sequences.
func NewTestLoader(d *Dataset, rows int) *TestLoader {
	return &TestLoader{d: d, rows: rows}
}

// Reset rewinds to the first sequence.
func (l *TestLoader) Reset() { l.group, l.pos = 0, 0 }

// Next returns the next batch, or false when every transition has been produced.
func (l *TestLoader) Next() (*Batch, bool) {
	for l.group < len(l.d.Seqs) {
		b := borrowBatch(1, l.rows)
		for r := 0; r < l.rows && l.group+r < len(l.d.Seqs); r++ {
			s := l.d.Seqs[l.group+r]
			if l.pos == 0 {
				b.Reset[r] = true
			}
			if l.pos+1 < s.Len() {
				b.fill(r, s, l.pos)
			}
		}
		if b.Samples > 0 {
			l.pos++
			return b, true
		}
		ReturnBatch(b)
		l.group += l.rows
		l.pos = 0
	}
	return nil, false
}
