package chat

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Metadata is attached to enhanced agent replies.
type Metadata struct {
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	Entities         []string `json:"entities"`
	ProcessingMethod string   `json:"processingMethod"`
}

// Message is one stored turn of a chat session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"-"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	SQL       string    `json:"sql,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists chat history.
type Store interface {
	Append(ctx context.Context, msg Message) error
	// List returns a user's messages in a session, oldest first.
	List(ctx context.Context, userID, sessionID string, limit int) ([]Message, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	msgs map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{msgs: make(map[string][]Message)}
}

func (s *MemoryStore) Append(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.SessionID] = append(s.msgs[msg.SessionID], msg)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, userID, sessionID string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, 0)
	for _, m := range s.msgs[sessionID] {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
