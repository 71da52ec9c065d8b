package events

import "sync"

// Recorder is a Sink that remembers every event it receives. It is safe for
// concurrent use and mainly intended for tests and headless runs.
type Recorder struct {
	mu        sync.Mutex
	statuses  []string
	copies    []CopyCompleted
	summaries map[uint]string
	order     []string
}

func (r *Recorder) StatusMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, text)
	r.order = append(r.order, "status:"+text)
}

func (r *Recorder) CopyCompleted(event CopyCompleted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.copies = append(r.copies, event)
	r.order = append(r.order, "copy")
}

func (r *Recorder) SummaryUpdated(recordID uint, summary string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summaries == nil {
		r.summaries = make(map[uint]string)
	}
	r.summaries[recordID] = summary
	r.order = append(r.order, "summary")
}

// Statuses returns the status messages received so far.
func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

// Copies returns the copy completed events received so far.
func (r *Recorder) Copies() []CopyCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CopyCompleted(nil), r.copies...)
}

// Summary returns the last summary received for recordID.
func (r *Recorder) Summary(recordID uint) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.summaries[recordID]
	return s, ok
}

// Order returns a compact trace of every event kind in arrival order.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
