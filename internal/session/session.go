// Package session keeps per-user dashboard workspaces.
//
// Tables are immutable, so a session only ever swaps pointers: readers take a
// snapshot under the read lock and work on it without further locking.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/chat"
	"github.com/KaramelBytes/dataloom/internal/table"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrNoData    = errors.New("no data loaded")
	ErrNoResult  = errors.New("no filtered or cleaned result to apply")
	ErrBadFilter = errors.New("filter index out of range")
)

// ResultKind labels the last derived table.
type ResultKind string

const (
	ResultFiltered ResultKind = "filtered"
	ResultCleaned  ResultKind = "cleaned"
)

// Session is one user's workspace.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	fileName   string
	original   *table.Table
	data       *table.Table
	filters    analysis.FilterSet
	result     *table.Table
	resultKind ResultKind
	conv       *chat.Conversation
	updatedAt  time.Time
}

// Info is a JSON-friendly snapshot of session state.
type Info struct {
	ID         string             `json:"id"`
	FileName   string             `json:"file_name,omitempty"`
	Rows       int                `json:"rows"`
	Cols       int                `json:"cols"`
	Filters    analysis.FilterSet `json:"filters"`
	ResultKind ResultKind         `json:"result_kind,omitempty"`
	ResultRows int                `json:"result_rows,omitempty"`
	ChatTurns  int                `json:"chat_turns"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func newSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, CreatedAt: now, updatedAt: now, filters: analysis.FilterSet{}}
}

func (s *Session) touch() { s.updatedAt = time.Now().UTC() }

// Load installs a freshly loaded table and resets all derived state.
func (s *Session) Load(fileName string, t *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileName = fileName
	s.original, s.data = t, t
	s.filters = analysis.FilterSet{}
	s.result, s.resultKind = nil, ""
	s.conv = nil
	s.touch()
}

// Data returns the working table snapshot and its file name.
func (s *Session) Data() (*table.Table, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, s.fileName
}

// Require returns the working table or ErrNoData.
func (s *Session) Require() (*table.Table, error) {
	t, _ := s.Data()
	if ok, _ := table.Validate(t); !ok {
		return nil, ErrNoData
	}
	return t, nil
}

// Replace swaps the working table wholesale. The pending result and the chat
// are dropped because they describe the previous table.
func (s *Session) Replace(t *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(t)
}

func (s *Session) replaceLocked(t *table.Table) {
	s.data = t
	s.result, s.resultKind = nil, ""
	s.conv = nil
	s.touch()
}

// Reset restores the table as originally loaded and drops pending filters.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = analysis.FilterSet{}
	s.replaceLocked(s.original)
}

// AddFilter appends a pending filter and returns the new list.
func (s *Session) AddFilter(f analysis.Filter) analysis.FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(append(analysis.FilterSet{}, s.filters...), f)
	s.touch()
	return s.filters
}

// RemoveFilter drops the pending filter at index i.
func (s *Session) RemoveFilter(i int) (analysis.FilterSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.filters) {
		return nil, fmt.Errorf("%w: %d", ErrBadFilter, i)
	}
	next := make(analysis.FilterSet, 0, len(s.filters)-1)
	next = append(next, s.filters[:i]...)
	next = append(next, s.filters[i+1:]...)
	s.filters = next
	s.touch()
	return next, nil
}

// ClearFilters empties the pending filter list.
func (s *Session) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = analysis.FilterSet{}
	s.touch()
}

// Filters returns the pending filter list. The slice must not be modified.
func (s *Session) Filters() analysis.FilterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// SetResult records a derived table for preview before it is adopted.
func (s *Session) SetResult(t *table.Table, kind ResultKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result, s.resultKind = t, kind
	s.touch()
}

// Result returns the last derived table, if any.
func (s *Session) Result() (*table.Table, ResultKind) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.resultKind
}

// Adopt makes the last derived table the working table. Adopting a filtered
// result also clears the pending filters.
func (s *Session) Adopt() (*table.Table, ResultKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil, "", ErrNoResult
	}
	t, kind := s.result, s.resultKind
	s.data = t
	if kind == ResultFiltered {
		s.filters = analysis.FilterSet{}
	}
	s.result, s.resultKind = nil, ""
	s.conv = nil
	s.touch()
	return t, kind, nil
}

// Conversation returns the chat bound to the current working table, creating
// it on first use. Asking for a different model starts a new conversation,
// since the system prompt is sized for the model's context window.
func (s *Session) Conversation(opts chat.Options) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	model := opts.Model
	if model == "" {
		model = chat.DefaultModel
	}
	if s.conv != nil && s.conv.Model() == model {
		return s.conv, nil
	}
	c, err := chat.NewConversation(s.fileName, s.data, opts)
	if err != nil {
		return nil, err
	}
	s.conv = c
	return c, nil
}

// ExistingConversation returns the chat without creating one.
func (s *Session) ExistingConversation() *chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conv
}

// Info snapshots the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in := Info{
		ID:         s.ID,
		FileName:   s.fileName,
		Rows:       s.data.NumRows(),
		Cols:       s.data.NumCols(),
		Filters:    s.filters,
		ResultKind: s.resultKind,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.updatedAt,
	}
	if s.result != nil {
		in.ResultRows = s.result.NumRows()
	}
	if s.conv != nil {
		in.ChatTurns = len(s.conv.Messages())
	}
	return in
}
