package session

import (
	"sync"
	"time"

	"github.com/tmorrell/jot/internal/digest"
)

// DefaultTTL is how long an idle conversation survives.
const DefaultTTL = 30 * time.Minute

// DefaultProcessedCap bounds the processed-message-id set.
const DefaultProcessedCap = 1000

// FieldOption is one numbered entry of a field-update menu. Indices into
// the menu are 1-based.
type FieldOption struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// PendingUpdate tracks an in-progress field edit between "user chose a
// record" and "new value applied".
type PendingUpdate struct {
	RecordID      string        `json:"record_id"`
	Category      string        `json:"category"`
	Fields        []FieldOption `json:"fields"`
	AwaitingValue bool          `json:"awaiting_value"`
	FieldKey      string        `json:"field_key,omitempty"`
	FieldName     string        `json:"field_name,omitempty"`
}

// Session is per-(room, person) conversational state. A person's session
// is never shared across rooms.
type Session struct {
	UpdatedAt     time.Time      `json:"updated_at"`
	LastList      []digest.Item  `json:"last_list"`
	PendingUpdate *PendingUpdate `json:"pending_update"`
}

// Store holds sessions and the processed-message-id set. State is
// ephemeral and process-local; concurrent webhook deliveries for the same
// person are last-writer-wins, which is acceptable at personal-assistant
// traffic. Deployments with real concurrency should serialize
// read-modify-write per (room, person) on top of this store.
type Store struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time

	rooms map[string]map[string]*Session

	processed      map[string]bool
	processedOrder []string
	processedCap   int
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the idle TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithProcessedCap overrides the processed-id set bound.
func WithProcessedCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.processedCap = n
		}
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		ttl:          DefaultTTL,
		now:          time.Now,
		rooms:        make(map[string]map[string]*Session),
		processed:    make(map[string]bool),
		processedCap: DefaultProcessedCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the session for (roomID, personID), or nil.
// Expired sessions are pruned first; TTL enforcement piggybacks on
// traffic, there is no background timer.
func (s *Store) Get(roomID, personID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	sess, ok := room[personID]
	if !ok {
		return nil
	}
	copied := *sess
	return &copied
}

// Put stores the session for (roomID, personID), stamping UpdatedAt.
func (s *Store) Put(roomID, personID string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	sess.UpdatedAt = s.now()
	room, ok := s.rooms[roomID]
	if !ok {
		room = make(map[string]*Session)
		s.rooms[roomID] = room
	}
	room[personID] = sess
}

// ClearPending drops a person's pending update without touching the last
// list. No-op when no session exists.
func (s *Store) ClearPending(roomID, personID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[roomID]; ok {
		if sess, ok := room[personID]; ok {
			sess.PendingUpdate = nil
			sess.UpdatedAt = s.now()
		}
	}
}

// Prune removes every idle-expired session.
func (s *Store) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
}

func (s *Store) pruneLocked() {
	cutoff := s.now().Add(-s.ttl)
	for roomID, room := range s.rooms {
		for personID, sess := range room {
			if sess.UpdatedAt.Before(cutoff) {
				delete(room, personID)
			}
		}
		if len(room) == 0 {
			delete(s.rooms, roomID)
		}
	}
}

// MarkProcessed records a message id and reports whether it was already
// present. Duplicates are recorded for observability but do not block
// reprocessing; that decision sits with the caller. The set is capped
// FIFO.
func (s *Store) MarkProcessed(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processed[messageID] {
		return true
	}
	s.processed[messageID] = true
	s.processedOrder = append(s.processedOrder, messageID)
	for len(s.processedOrder) > s.processedCap {
		oldest := s.processedOrder[0]
		s.processedOrder = s.processedOrder[1:]
		delete(s.processed, oldest)
	}
	return false
}

// ProcessedCount returns the current size of the processed-id set.
func (s *Store) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}
