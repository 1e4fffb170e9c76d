// Package history holds the bounded per-conversation message log and the
// per-identity directory of open conversations.
package history

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fernwick/chatter/pkg/protocol"
)

// ConvKey identifies the conversation between two identities. Construction
// orders the pair, so Key(a, b) == Key(b, a).
type ConvKey struct {
	lo, hi uuid.UUID
}

func Key(a, b uuid.UUID) ConvKey {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return ConvKey{lo: a, hi: b}
	}
	return ConvKey{lo: b, hi: a}
}

type conversation struct {
	mu  sync.Mutex
	log *Ring[protocol.ChatMessage]
}

// Store caches one bounded message log per conversation key and tracks, per
// identity, which counterparts it has exchanged messages with.
//
// The log cache is an LRU with a configurable entry bound. Evicting a
// conversation drops only its recent-history window, which the protocol
// already declares lossy. The directory is deliberately unbounded: dropping
// entries there would lose contact listings, not just history.
type Store struct {
	capacity int

	mu   sync.Mutex
	logs *lru.Cache[ConvKey, *conversation]

	dirMu     sync.RWMutex
	directory map[uuid.UUID]map[uuid.UUID]struct{}
}

// NewStore returns a store whose per-conversation logs hold logCapacity
// entries and whose cache retains at most cacheSize conversations.
func NewStore(logCapacity, cacheSize int) *Store {
	if cacheSize < 1 {
		cacheSize = 1
	}
	logs, _ := lru.New[ConvKey, *conversation](cacheSize)
	return &Store{
		capacity:  logCapacity,
		logs:      logs,
		directory: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// conversationFor returns the log for key, creating it exactly once even
// under concurrent first access.
func (s *Store) conversationFor(key ConvKey) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.logs.Get(key); ok {
		return c
	}
	c := &conversation{log: NewRing[protocol.ChatMessage](s.capacity)}
	s.logs.Add(key, c)
	return c
}

// Push appends an entry to the conversation between from and to, overwriting
// the oldest entry once the log is at capacity.
func (s *Store) Push(from, to uuid.UUID, msg protocol.ChatMessage) {
	c := s.conversationFor(Key(from, to))
	c.mu.Lock()
	c.log.Push(msg)
	c.mu.Unlock()
}

// Messages returns the retained window for the conversation between from and
// to, oldest to newest.
func (s *Store) Messages(from, to uuid.UUID) []protocol.ChatMessage {
	c := s.conversationFor(Key(from, to))
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Snapshot()
}

// RecordOpen marks each identity as a counterpart of the other.
func (s *Store) RecordOpen(a, b uuid.UUID) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.insertCounterpart(a, b)
	s.insertCounterpart(b, a)
}

func (s *Store) insertCounterpart(owner, other uuid.UUID) {
	set, ok := s.directory[owner]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.directory[owner] = set
	}
	set[other] = struct{}{}
}

// Counterparts returns the identities id has exchanged messages or topics
// with, in a stable order.
func (s *Store) Counterparts(id uuid.UUID) []uuid.UUID {
	s.dirMu.RLock()
	out := make([]uuid.UUID, 0, len(s.directory[id]))
	for other := range s.directory[id] {
		out = append(out, other)
	}
	s.dirMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
