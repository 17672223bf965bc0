package queue

import (
	"github.com/eapache/queue"
	"github.com/vogiaan1904/trafficroom/internal/models"
)

// FIFO is the waiting line for the session slot. It is not safe for
// concurrent use; the coordinator serializes access under its own lock.
type FIFO struct {
	q *queue.Queue
}

func NewFIFO() *FIFO {
	return &FIFO{q: queue.New()}
}

// Enqueue appends the entry and returns its 1-based position.
func (f *FIFO) Enqueue(e models.QueueEntry) int {
	f.q.Add(e)
	return f.q.Length()
}

// Dequeue removes and returns the head entry.
func (f *FIFO) Dequeue() (models.QueueEntry, bool) {
	if f.q.Length() == 0 {
		return models.QueueEntry{}, false
	}

	return f.q.Remove().(models.QueueEntry), true
}

func (f *FIFO) Peek() (models.QueueEntry, bool) {
	if f.q.Length() == 0 {
		return models.QueueEntry{}, false
	}

	return f.q.Peek().(models.QueueEntry), true
}

func (f *FIFO) Len() int {
	return f.q.Length()
}

// Position returns the 1-based position of the first entry for requesterID,
// or 0 when the requester is not waiting.
func (f *FIFO) Position(requesterID int64) int {
	for i := 0; i < f.q.Length(); i++ {
		if f.q.Get(i).(models.QueueEntry).RequesterID == requesterID {
			return i + 1
		}
	}

	return 0
}
