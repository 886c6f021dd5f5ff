package tools

import "sync"

// CallRecord is the append-only log of tool names invoked during one agent
// run. Tools consult it to enforce quotas and ordering; the loop consults it
// to decide when to stop.
type CallRecord struct {
	mu    sync.Mutex
	names []string
}

// NewCallRecord returns an empty record.
func NewCallRecord() *CallRecord {
	return &CallRecord{}
}

// Append records one invocation of name.
func (r *CallRecord) Append(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

// Count returns how many times name has been recorded.
func (r *CallRecord) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.names {
		if v == name {
			n++
		}
	}
	return n
}

// Has reports whether name has been recorded at least once.
func (r *CallRecord) Has(name string) bool {
	return r.Count(name) > 0
}

// Len returns the total number of recorded invocations.
func (r *CallRecord) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// Names returns a copy of the log in invocation order.
func (r *CallRecord) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}
