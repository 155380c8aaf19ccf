package eventlog

// queue is an unbounded FIFO of events. Not safe for concurrent use;
// the Controller serializes access.
type queue struct {
	items []Event
}

func (q *queue) push(e Event) {
	q.items = append(q.items, e)
}

func (q *queue) len() int {
	return len(q.items)
}

// popN removes and returns the first n items in order.
func (q *queue) popN(n int) []Event {
	if n <= 0 {
		return nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}

	batch := make([]Event, n)
	copy(batch, q.items[:n])

	// release references held by the shared backing array
	clear(q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return batch
}
