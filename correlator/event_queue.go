package correlator

import "container/heap"

// EventQueue orders pending events by the time the engine will process
// them. Ties go to whichever event was pushed first, so notifications
// delivered for the same instant keep their delivery order.
type EventQueue struct {
	pending schedule
	pushed  uint64 // sequence for the next push
}

// slot is one pending event. at may be later than event.Timestamp() when a
// late notification is clamped to the current clock.
type slot struct {
	event Event
	at    float64
	seq   uint64
}

// NewEventQueue returns an empty queue
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push schedules event at its own timestamp
func (eq *EventQueue) Push(event Event) {
	eq.PushAt(event, event.Timestamp())
}

// PushAt schedules event at at, leaving its timestamp untouched
func (eq *EventQueue) PushAt(event Event, at float64) {
	heap.Push(&eq.pending, slot{event: event, at: at, seq: eq.pushed})
	eq.pushed++
}

// Pop removes the earliest event; nil when empty
func (eq *EventQueue) Pop() Event {
	if len(eq.pending) == 0 {
		return nil
	}
	return heap.Pop(&eq.pending).(slot).event
}

// NextTime is the processing time of the earliest event, or -1 when empty
func (eq *EventQueue) NextTime() float64 {
	if len(eq.pending) == 0 {
		return -1
	}
	return eq.pending[0].at
}

func (eq *EventQueue) IsEmpty() bool { return len(eq.pending) == 0 }

func (eq *EventQueue) Len() int { return len(eq.pending) }

// Clear drops every pending event. Sequence numbers keep counting.
func (eq *EventQueue) Clear() {
	eq.pending = eq.pending[:0]
}

// CountType counts pending events of type t
func (eq *EventQueue) CountType(t EventType) int {
	n := 0
	for _, s := range eq.pending {
		if s.event.Type() == t {
			n++
		}
	}
	return n
}

// schedule is a min-heap on (at, seq)
type schedule []slot

func (s schedule) Len() int      { return len(s) }
func (s schedule) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s schedule) Less(i, j int) bool {
	if s[i].at == s[j].at {
		return s[i].seq < s[j].seq
	}
	return s[i].at < s[j].at
}

func (s *schedule) Push(x any) { *s = append(*s, x.(slot)) }

func (s *schedule) Pop() any {
	last := len(*s) - 1
	top := (*s)[last]
	(*s)[last] = slot{}
	*s = (*s)[:last]
	return top
}
