package session

import (
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweetpotato0/wanderai/convo"
	"github.com/sweetpotato0/wanderai/message"
)

// DefaultHistoryLimit bounds the messages kept per session.
const DefaultHistoryLimit = 20

// Stats are the per-session validation counters.
type Stats struct {
	TotalMessages           int `json:"total_messages"`
	ValidatedResponses      int `json:"validated_responses"`
	HallucinationsPrevented int `json:"hallucinations_prevented"`
	KBRefreshes             int `json:"kb_refreshes"`
}

// ChatSession is the state of one conversation. Callers hold the session
// lock while handling a message so requests for the same session never
// interleave.
type ChatSession struct {
	mu sync.Mutex

	id                     string
	CreatedAt              time.Time
	LastMessageAt          time.Time
	History                *message.History
	TopicsDiscussed        map[string]bool
	PreviousResponses      map[string]string
	SuggestedPlaces        []string
	KnowledgeBaseTimestamp time.Time
	UserPreferences        map[string]any
	Stats                  Stats
	State                  convo.State
}

// NewChatSession creates a session with a random id.
func NewChatSession(historyLimit int) *ChatSession {
	return newChatSession(uuid.NewString(), historyLimit)
}

func newChatSession(id string, historyLimit int) *ChatSession {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	now := time.Now()
	return &ChatSession{
		id:                     id,
		CreatedAt:              now,
		LastMessageAt:          now,
		History:                message.NewHistory(historyLimit),
		TopicsDiscussed:        make(map[string]bool),
		PreviousResponses:      make(map[string]string),
		KnowledgeBaseTimestamp: now,
		UserPreferences:        make(map[string]any),
		State:                  convo.StateIdle,
	}
}

// ID returns the session id.
func (s *ChatSession) ID() string {
	return s.id
}

// Lock acquires the session for a single message.
func (s *ChatSession) Lock() {
	s.mu.Lock()
}

// Unlock releases the session.
func (s *ChatSession) Unlock() {
	s.mu.Unlock()
}

// AddMessage appends to the bounded history and stamps the session.
func (s *ChatSession) AddMessage(role message.Role, content string) {
	s.History.Append(role, content)
	s.LastMessageAt = time.Now()
}

// Messages returns the retained history, oldest first.
func (s *ChatSession) Messages() []*message.Message {
	return s.History.Messages()
}

// Topics returns the discussed topics in sorted order.
func (s *ChatSession) Topics() []string {
	topics := make([]string, 0, len(s.TopicsDiscussed))
	for t := range s.TopicsDiscussed {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Interests returns the query types recorded in the user preferences.
func (s *ChatSession) Interests() []string {
	switch v := s.UserPreferences["query_types"].(type) {
	case []string:
		return v
	case []any:
		// decoded from a stored record
		types := make([]string, 0, len(v))
		for _, t := range v {
			if str, ok := t.(string); ok {
				types = append(types, str)
			}
		}
		return types
	}
	return nil
}

// Record is the serializable form of a ChatSession.
type Record struct {
	ID                     string             `json:"id"`
	CreatedAt              time.Time          `json:"created_at"`
	LastMessageAt          time.Time          `json:"last_message_at"`
	Messages               []*message.Message `json:"messages"`
	TopicsDiscussed        []string           `json:"topics_discussed"`
	PreviousResponses      map[string]string  `json:"previous_responses,omitempty"`
	SuggestedPlaces        []string           `json:"suggested_places"`
	KnowledgeBaseTimestamp time.Time          `json:"knowledge_base_timestamp"`
	UserPreferences        map[string]any     `json:"user_preferences,omitempty"`
	Stats                  Stats              `json:"validation_stats"`
	State                  convo.State        `json:"state"`
}

// Clone returns a copy that shares no slices or maps with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cloned := *r
	cloned.Messages = message.CloneMessages(r.Messages)
	cloned.TopicsDiscussed = append([]string(nil), r.TopicsDiscussed...)
	cloned.SuggestedPlaces = append([]string(nil), r.SuggestedPlaces...)
	cloned.PreviousResponses = maps.Clone(r.PreviousResponses)
	cloned.UserPreferences = maps.Clone(r.UserPreferences)
	return &cloned
}

// Snapshot captures the session as a Record. The caller must hold the
// session lock or otherwise own the session.
func (s *ChatSession) Snapshot() *Record {
	return (&Record{
		ID:                     s.id,
		CreatedAt:              s.CreatedAt,
		LastMessageAt:          s.LastMessageAt,
		Messages:               s.History.Messages(),
		TopicsDiscussed:        s.Topics(),
		PreviousResponses:      s.PreviousResponses,
		SuggestedPlaces:        s.SuggestedPlaces,
		KnowledgeBaseTimestamp: s.KnowledgeBaseTimestamp,
		UserPreferences:        s.UserPreferences,
		Stats:                  s.Stats,
		State:                  s.State,
	}).Clone()
}

// FromRecord rebuilds a session from a snapshot.
func FromRecord(r *Record, historyLimit int) *ChatSession {
	s := newChatSession(r.ID, historyLimit)
	s.CreatedAt = r.CreatedAt
	s.LastMessageAt = r.LastMessageAt
	s.History.Restore(message.CloneMessages(r.Messages))
	for _, t := range r.TopicsDiscussed {
		s.TopicsDiscussed[t] = true
	}
	maps.Copy(s.PreviousResponses, r.PreviousResponses)
	s.SuggestedPlaces = append([]string(nil), r.SuggestedPlaces...)
	s.KnowledgeBaseTimestamp = r.KnowledgeBaseTimestamp
	maps.Copy(s.UserPreferences, r.UserPreferences)
	s.Stats = r.Stats
	if r.State != "" {
		s.State = r.State
	}
	return s
}
