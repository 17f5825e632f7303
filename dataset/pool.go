package dataset

import "sync"

type shape struct{ steps, rows int }

var (
	poolMu    sync.Mutex
	batchPool = make(map[shape]*sync.Pool)
)

func poolFor(steps, rows int) *sync.Pool {
	poolMu.Lock()
	defer poolMu.Unlock()
	k := shape{steps, rows}
	p, ok := batchPool[k]
	if !ok {
		p = &sync.Pool{
			New: func() interface{} { return newBatch(steps, rows) },
		}
		batchPool[k] = p
	}
	return p
}

// borrowBatch returns a cleared batch: every row inactive, every event -1.
func borrowBatch(steps, rows int) *Batch {
	b := poolFor(steps, rows).Get().(*Batch)
	b.clear()
	return b
}

// ReturnBatch hands b back to the loaders. b must not be used afterwards.
func ReturnBatch(b *Batch) {
	if b == nil {
		return
	}
	poolFor(b.Steps, b.Rows).Put(b)
}

func (b *Batch) clear() {
	for t := 0; t < b.Steps; t++ {
		for r := 0; r < b.Rows; r++ {
			b.Events[t][r] = -1
			b.NextEvents[t][r] = -1
			b.Times[t][r] = 0
			b.NextTimes[t][r] = 0
		}
	}
	for r := 0; r < b.Rows; r++ {
		b.Active[r] = false
		b.Reset[r] = false
	}
	b.Samples = 0
}
