// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"sync"

	"github.com/custodia-foundation/custodia/lib/clock"
)

// Record is one pending journal write: a type name and its
// not-yet-encoded payload. Sequence numbers, timestamps, and chain
// hashes are assigned by the journal at commit.
type Record struct {
	Type    string
	Payload any
}

// Journal is the sink the ledger writes audit entries to. Append
// assigns the sequence number, timestamp, and chain hash, and returns
// the completed entry.
//
// AppendAll commits a batch of records atomically: either every
// record lands as a consecutive run of entries, or none do. Ledger
// operations that describe one mutation with several entries use it
// so a mid-batch failure cannot leave the journal ahead of the
// ledger.
//
// Implementations must be safe for concurrent use. The ledger calls
// Append while holding its own lock, so entries land in the journal in
// the same order the mutations they describe were applied.
type Journal interface {
	Append(entryType string, payload any) (Entry, error)
	AppendAll(records []Record) ([]Entry, error)
}

// Memory is an in-process journal. Entries are retained in append
// order and can be re-read from any sequence number, so an observer
// that disconnects can catch up from where it left off — the offset
// model a relay wants.
//
// All methods are safe for concurrent use.
type Memory struct {
	mutex       sync.Mutex
	clk         clock.Clock
	entries     []Entry
	subscribers map[int]chan Entry
	nextSubID   int
}

// NewMemory creates an empty in-process journal. A nil clk defaults to
// the system clock.
func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.Real()
	}
	return &Memory{
		clk:         clk,
		subscribers: make(map[int]chan Entry),
	}
}

// Append chains and stores a new entry, then fans it out to
// subscribers. A subscriber whose channel buffer is full misses the
// entry on its channel but can recover it via ReadFrom — delivery is
// best-effort, retention is not.
func (m *Memory) Append(entryType string, payload any) (Entry, error) {
	entries, err := m.AppendAll([]Record{{Type: entryType, Payload: payload}})
	if err != nil {
		return Entry{}, err
	}
	return entries[0], nil
}

// AppendAll chains and stores a batch of records atomically, then
// fans the new entries out to subscribers. If any record fails to
// encode, nothing is stored.
func (m *Memory) AppendAll(records []Record) ([]Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	seq := uint64(len(m.entries))
	prev := m.headLocked()
	batch := make([]Entry, 0, len(records))
	for _, record := range records {
		seq++
		entry, err := newEntry(seq, m.clk.Now(), record.Type, record.Payload, prev)
		if err != nil {
			return nil, err
		}
		batch = append(batch, entry)
		prev = entry.Hash
	}

	m.entries = append(m.entries, batch...)
	for _, entry := range batch {
		for _, ch := range m.subscribers {
			select {
			case ch <- entry:
			default:
			}
		}
	}
	return batch, nil
}

// ReadFrom returns a copy of all entries with sequence number >= seq.
// Pass 1 (or 0) for the full journal. Returns nil when there is
// nothing at or past seq.
func (m *Memory) ReadFrom(seq uint64) []Entry {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if seq > uint64(len(m.entries)) {
		return nil
	}
	start := 0
	if seq > 0 {
		start = int(seq) - 1
	}
	result := make([]Entry, len(m.entries)-start)
	copy(result, m.entries[start:])
	return result
}

// Len returns the number of entries in the journal.
func (m *Memory) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.entries)
}

// Head returns the hash of the most recent entry, or the zero hash
// for an empty journal.
func (m *Memory) Head() Hash {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.headLocked()
}

func (m *Memory) headLocked() Hash {
	if len(m.entries) == 0 {
		return Hash{}
	}
	return m.entries[len(m.entries)-1].Hash
}

// Subscribe registers a channel that receives every entry appended
// after the call. The channel has the given buffer capacity; entries
// that would block are dropped (see Append). The returned cancel
// function unregisters and closes the channel.
func (m *Memory) Subscribe(buffer int) (<-chan Entry, func()) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Entry, buffer)
	m.subscribers[id] = ch

	cancel := func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		if existing, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}
