// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake memory mappings for testing.

package fake

import "sync"

// Journal records the order in which fakes were closed.
type Journal struct {
	mu     sync.Mutex
	events []string
}

// Add appends an event.
func (j *Journal) Add(ev string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
}

// Events returns the recorded events in order.
func (j *Journal) Events() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

// Memory stands in for a physical memory mapping.
type Memory struct {
	mu         sync.Mutex
	name       string
	data       []byte
	closed     bool
	closeError error
	journal    *Journal
}

// NewMemory allocates size zeroed bytes. Close is reported to j under name
// when j is not nil.
func NewMemory(name string, size int, j *Journal) *Memory {
	return &Memory{name: name, data: make([]byte, size), journal: j}
}

// Bytes returns the mapped bytes.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	return m.data
}

// Close releases the mapping. A second Close is a no-op.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if m.closeError != nil {
		return m.closeError
	}
	m.closed = true
	if m.journal != nil {
		m.journal.Add("close " + m.name)
	}
	return nil
}

// Closed reports whether Close succeeded.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetCloseError makes Close fail with err.
func (m *Memory) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}
