package storage

import (
	"errors"
	"sync"
)

// ErrOverlayClosed is returned when an overlay is used after Commit or Discard.
var ErrOverlayClosed = errors.New("storage: overlay already closed")

// Overlay buffers writes on top of a parent Database. Reads observe the
// buffered writes first. Nothing reaches the parent until Commit, which
// applies every buffered write in one batch when the parent supports it.
//
// Overlay is the unit of all-or-nothing execution: an operation that fails
// simply discards its overlay.
type Overlay struct {
	mu      sync.RWMutex
	parent  Database
	puts    map[string][]byte
	deletes map[string]struct{}
	closed  bool
}

// NewOverlay starts a write buffer over parent.
func NewOverlay(parent Database) *Overlay {
	return &Overlay{
		parent:  parent,
		puts:    make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOverlayClosed
	}
	k := string(key)
	delete(o.deletes, k)
	o.puts[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return nil, ErrOverlayClosed
	}
	k := string(key)
	if value, ok := o.puts[k]; ok {
		return append([]byte(nil), value...), nil
	}
	if _, ok := o.deletes[k]; ok {
		return nil, ErrNotFound
	}
	return o.parent.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOverlayClosed
	}
	k := string(key)
	delete(o.puts, k)
	o.deletes[k] = struct{}{}
	return nil
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return false, ErrOverlayClosed
	}
	k := string(key)
	if _, ok := o.puts[k]; ok {
		return true, nil
	}
	if _, ok := o.deletes[k]; ok {
		return false, nil
	}
	return o.parent.Has(key)
}

// Pending reports the number of buffered writes and deletes.
func (o *Overlay) Pending() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.puts) + len(o.deletes)
}

// Commit flushes the buffered writes into the parent and closes the overlay.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOverlayClosed
	}
	o.closed = true
	if batcher, ok := o.parent.(Batcher); ok {
		return batcher.WriteBatch(o.puts, o.deletes)
	}
	for key := range o.deletes {
		if err := o.parent.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range o.puts {
		if err := o.parent.Put([]byte(key), value); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops every buffered write.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.puts = nil
	o.deletes = nil
}

// Close discards the overlay; the parent stays open.
func (o *Overlay) Close() { o.Discard() }
