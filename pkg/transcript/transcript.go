package transcript

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/machinewire/mcpchat/pkg/store"
	"github.com/machinewire/mcpchat/pkg/types"
)

/*
Transcript is the append-only ordered log of chat turns. Every append is
written through to the local store immediately; on startup the persisted
entries are replayed in order.
*/
type Transcript struct {
	mu        sync.RWMutex
	entries   []types.TranscriptEntry
	store     store.Store
	observers []func(types.TranscriptEntry)
}

func New(persistence store.Store) *Transcript {
	return &Transcript{store: persistence}
}

/*
Observe registers a callback invoked with each appended entry.
*/
func (t *Transcript) Observe(callback func(types.TranscriptEntry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, callback)
}

/*
Rehydrate replaces the in-memory log with the persisted one. Called once on
startup, before any append.
*/
func (t *Transcript) Rehydrate() error {
	entries, err := t.store.Entries()
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()

	log.Info("transcript rehydrated", "entries", len(entries))
	return nil
}

/*
Append commits one entry to the log and persists it. A zero timestamp is
stamped with the current time.
*/
func (t *Transcript) Append(entry types.TranscriptEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	observers := make([]func(types.TranscriptEntry), len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	if err := t.store.AppendEntry(entry); err != nil {
		log.Error("failed to persist transcript entry", "error", err)
	}

	for _, observer := range observers {
		observer(entry)
	}
}

/*
Entries returns a snapshot of the log in append order.
*/
func (t *Transcript) Entries() []types.TranscriptEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make([]types.TranscriptEntry, len(t.entries))
	copy(snapshot, t.entries)
	return snapshot
}

/*
Len reports the number of committed turns.
*/
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
