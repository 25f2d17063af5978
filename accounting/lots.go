package accounting

import (
	"github.com/shopspring/decimal"
)

// Lot is an open deposit still counted at its entry rate.
type Lot struct {
	Value decimal.Decimal
	Block uint32
	Rate  decimal.Decimal
}

// lotQueue is a growable ring buffer of lots, oldest first.
type lotQueue struct {
	buf  []Lot
	head int
	size int
}

func (q *lotQueue) Len() int {
	return q.size
}

func (q *lotQueue) PushBack(lot Lot) {
	if q.size == len(q.buf) {
		q.grow()
	}

	q.buf[(q.head+q.size)%len(q.buf)] = lot
	q.size++
}

// Front returns the oldest lot for in place updates. The queue must not be empty.
func (q *lotQueue) Front() *Lot {
	return &q.buf[q.head]
}

func (q *lotQueue) PopFront() Lot {
	lot := q.buf[q.head]
	q.buf[q.head] = Lot{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--

	return lot
}

// Slice copies the queue contents, oldest first.
func (q *lotQueue) Slice() []Lot {
	out := make([]Lot, 0, q.size)
	for i := 0; i < q.size; i++ {
		out = append(out, q.buf[(q.head+i)%len(q.buf)])
	}

	return out
}

func (q *lotQueue) grow() {
	size := 2 * len(q.buf)
	if size == 0 {
		size = 8
	}

	buf := make([]Lot, size)
	copy(buf, q.Slice())

	q.buf = buf
	q.head = 0
}
