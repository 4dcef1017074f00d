package testutil

import (
	"sync"

	"github.com/ssured/drawbot/internal/value"
)

// Edge is one observed-set transition seen by a Recorder.
type Edge struct {
	Subject  value.Subject
	Observed bool
}

// Recorder is a graph sink that keeps everything it is handed.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu      sync.Mutex
	changes []value.ChangeTuple
	edges   []Edge
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnChange records a logged change.
func (r *Recorder) OnChange(t value.ChangeTuple) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, t)
}

// OnObserved records an observed-set edge.
func (r *Recorder) OnObserved(subject value.Subject, observed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, Edge{Subject: subject.Clone(), Observed: observed})
}

// Changes returns a copy of the recorded changes.
func (r *Recorder) Changes() []value.ChangeTuple {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]value.ChangeTuple, len(r.changes))
	copy(out, r.changes)
	return out
}

// Edges returns a copy of the recorded observed-set edges.
func (r *Recorder) Edges() []Edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Edge, len(r.edges))
	copy(out, r.edges)
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = nil
	r.edges = nil
}
