// Package workspace holds the ordered list of blocks a user has composed
// into a program.
package workspace

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Block is one placed action. Blocks are never mutated after insertion.
type Block struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	InsertedAt time.Time `json:"insertedAt"`
}

// Timestamp is the clock time shown next to the block in the workspace.
func (b Block) Timestamp() string {
	return b.InsertedAt.Format("3:04:05 PM")
}

// Store is an ordered, append-only-or-remove collection of blocks.
// Order is insertion order and defines program execution order.
type Store struct {
	mu     sync.RWMutex
	blocks []Block
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for InsertedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty workspace.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds a block with a fresh id to the end of the workspace.
// Any label is accepted, including the empty string.
func (s *Store) Append(label string) Block {
	b := Block{
		ID:         newID(),
		Label:      label,
		InsertedAt: s.now(),
	}

	s.mu.Lock()
	s.blocks = append(s.blocks, b)
	s.mu.Unlock()
	return b
}

// Remove deletes the block with the given id. Unknown ids are ignored.
// It reports whether a block was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.blocks, func(b Block) bool { return b.ID == id })
	if i < 0 {
		return false
	}
	s.blocks = slices.Delete(s.blocks, i, i+1)
	return true
}

// Clear empties the workspace and reports whether anything was removed.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.blocks) == 0 {
		return false
	}
	s.blocks = nil
	return true
}

// List returns a snapshot of the blocks in insertion order.
func (s *Store) List() []Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.blocks)
}

// Len returns the number of blocks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

// newID returns a time-ordered UUIDv7, falling back to a random UUID if the
// clock sequence cannot be read.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
