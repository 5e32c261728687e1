package modelcall

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Update carries the mutable fields of a status transition. Zero token
// counts leave the stored counts untouched, so a terminal update without
// usage never erases what received_response captured.
type Update struct {
	Status           Status
	Response         string
	ErrorMessage     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Store persists model-call records. Implementations must be safe for
// concurrent use. The tracker treats every method as best-effort; a
// relational implementation can replace MemoryStore behind this interface.
type Store interface {
	Create(rec Record) (string, error)
	Update(id string, u Update) error
	Get(id string) (Record, bool)
	List() []Record
}

// MemoryStore is a mutex-guarded in-process Store with UUID ids.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Create(rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	now := time.Now().UTC()
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusCreated
	}

	s.records[id] = &rec
	s.order = append(s.order, id)
	return id, nil
}

func (s *MemoryStore) Update(id string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("model call %s not found", id)
	}

	rec.Status = u.Status
	rec.Response = u.Response
	rec.ErrorMessage = u.ErrorMessage
	rec.RetryAttempts = 1
	if u.PromptTokens != 0 || u.CompletionTokens != 0 || u.TotalTokens != 0 {
		rec.PromptTokens = u.PromptTokens
		rec.CompletionTokens = u.CompletionTokens
		rec.TotalTokens = u.TotalTokens
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// List returns record copies, newest first.
func (s *MemoryStore) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.records[s.order[i]])
	}
	return out
}
