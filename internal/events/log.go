// Package events is the append-only record of notable transitions that
// renderers and audio consumers poll.
package events

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

type Kind string

const (
	Merge      Kind = "merge"
	Kilonova   Kind = "kilonova"
	Absorption Kind = "absorption"
	Tidal      Kind = "tidal"
	Impact     Kind = "impact"
)

func Kinds() []Kind { return []Kind{Merge, Kilonova, Absorption, Tidal, Impact} }

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("events: unknown kind %q", s)
}

type Event struct {
	Seq          uint64    `json:"seq" yaml:"seq"`
	Kind         Kind      `json:"kind" yaml:"kind"`
	Tick         uint64    `json:"tick" yaml:"tick"`
	Time         float64   `json:"time" yaml:"time"`
	Participants []int64   `json:"participants" yaml:"participants"`
	ResultID     int64     `json:"result_id,omitempty" yaml:"result_id,omitempty"`
	ResultType   body.Type `json:"result_type" yaml:"result_type"`
	X            float64   `json:"x" yaml:"x"`
	Y            float64   `json:"y" yaml:"y"`
	Mass         float64   `json:"mass" yaml:"mass"`
	Strength     float64   `json:"strength" yaml:"strength"`
	Duration     float64   `json:"duration" yaml:"duration"`
	Detail       string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func (e Event) Pos() r2.Vec { return r2.Vec{X: e.X, Y: e.Y} }

func (e Event) String() string {
	return fmt.Sprintf("#%d t=%.3f %s %v -> %d (%s) m=%.3f", e.Seq, e.Time, e.Kind, e.Participants, e.ResultID, e.ResultType, e.Mass)
}

// Log buffers events until drained. When Limit is positive the oldest
// undrained events are dropped beyond it.
type Log struct {
	mu      sync.Mutex
	pending []Event
	seq     uint64
	counts  map[Kind]uint64
	dropped uint64
	limit   int
}

func NewLog(limit int) *Log {
	return &Log{counts: make(map[Kind]uint64), limit: limit}
}

// Append stamps e with the next sequence number and records it.
func (l *Log) Append(e Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e.Seq = l.seq
	l.pending = append(l.pending, e)
	l.counts[e.Kind]++
	if l.limit > 0 && len(l.pending) > l.limit {
		over := len(l.pending) - l.limit
		l.dropped += uint64(over)
		l.pending = append(l.pending[:0], l.pending[over:]...)
	}
	return e
}

// Drain returns the pending events in order and clears them.
func (l *Log) Drain() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pending
	l.pending = nil
	return out
}

// Snapshot copies the pending events without clearing them.
func (l *Log) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.pending))
	copy(out, l.pending)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Count is the number of events of kind k ever appended.
func (l *Log) Count(k Kind) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[k]
}

func (l *Log) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}
