package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/rag/document"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
)

// DefaultRetention is how long ClearOld keeps updates.
const DefaultRetention = 7 * 24 * time.Hour

// Sink receives validated updates.
type Sink interface {
	AddUpdate(u retrieval.Update)
	Timestamp() time.Time
}

// Stats summarises the updates log.
type Stats struct {
	TotalUpdates     int            `json:"total_updates"`
	RecentUpdates24h int            `json:"recent_updates_24h"`
	UpdatesByAction  map[string]int `json:"updates_by_action"`
	UpdatesByType    map[string]int `json:"updates_by_type"`
	LastUpdate       *time.Time     `json:"last_update,omitempty"`
	KBLastUpdated    *time.Time     `json:"kb_last_updated,omitempty"`
}

type updatesLog struct {
	Updates []retrieval.Update `json:"updates"`
	Count   int                `json:"count"`
}

// Manager validates incoming webhooks, persists them to the updates log and
// forwards them to the knowledge base.
type Manager struct {
	validator *Validator
	sink      Sink
	logPath   string
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	updates []retrieval.Update
}

// NewManager creates a manager and loads any existing updates log.
func NewManager(sink Sink, secret, logPath string) *Manager {
	m := &Manager{
		validator: NewValidator(secret),
		sink:      sink,
		logPath:   logPath,
		logger:    logging.WithComponent("webhook"),
		now:       time.Now,
	}
	m.load()
	return m
}

// Validator returns the signature validator.
func (m *Manager) Validator() *Validator {
	return m.validator
}

func (m *Manager) load() {
	if m.logPath == "" {
		return
	}
	raw, err := os.ReadFile(m.logPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Error("read updates log", "path", m.logPath, "error", err)
		}
		return
	}
	var doc updatesLog
	if err := json.Unmarshal(raw, &doc); err != nil {
		var list []retrieval.Update
		if err2 := json.Unmarshal(raw, &list); err2 != nil {
			m.logger.Error("decode updates log", "path", m.logPath, "error", err)
			return
		}
		doc.Updates = list
	}
	m.updates = doc.Updates
	m.logger.Info("loaded updates log", "updates", len(m.updates))
}

func (m *Manager) save() error {
	if m.logPath == "" {
		return nil
	}
	raw, err := json.MarshalIndent(updatesLog{Updates: m.updates, Count: len(m.updates)}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.logPath), 0o755); err != nil {
		return err
	}
	tmp := m.logPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.logPath)
}

// Process verifies and applies a raw webhook body. It returns a short
// human-readable confirmation.
func (m *Manager) Process(ctx context.Context, raw []byte, signature string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.validator.secret) > 0 && !m.validator.VerifySignature(raw, signature) {
		m.logger.Warn("invalid webhook signature")
		return "", fmt.Errorf("%w: invalid signature", errors.ErrUnauthorized)
	}

	var u retrieval.Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return "", fmt.Errorf("%w: decode payload: %v", errors.ErrInvalidInput, err)
	}
	if err := m.validator.ValidatePayload(&u); err != nil {
		m.logger.Warn("invalid webhook payload", "error", err)
		return "", err
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = m.now()
	}

	m.mu.Lock()
	m.updates = append(m.updates, u)
	err := m.save()
	m.mu.Unlock()
	if err != nil {
		m.logger.Error("save updates log", "error", err)
	}

	if m.sink != nil {
		m.sink.AddUpdate(u)
	}

	name := document.Stringify(u.Data["name"])
	if name == "" {
		name = "unknown"
	}
	m.logger.Info("processed webhook", "action", u.Action, "type", u.Type, "name", name)
	return fmt.Sprintf("Successfully processed %s for %s", u.Action, name), nil
}

// RecentUpdates returns updates newer than window.
func (m *Manager) RecentUpdates(window time.Duration) []retrieval.Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recent(window)
}

func (m *Manager) recent(window time.Duration) []retrieval.Update {
	cutoff := m.now().Add(-window)
	var out []retrieval.Update
	for _, u := range m.updates {
		if !u.Timestamp.IsZero() && !u.Timestamp.Before(cutoff) {
			out = append(out, u)
		}
	}
	return out
}

// ClearOld drops updates older than age and returns how many were removed.
// Updates without a timestamp are kept.
func (m *Manager) ClearOld(age time.Duration) (int, error) {
	if age <= 0 {
		age = DefaultRetention
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-age)
	kept := m.updates[:0:0]
	for _, u := range m.updates {
		if u.Timestamp.IsZero() || !u.Timestamp.Before(cutoff) {
			kept = append(kept, u)
		}
	}
	removed := len(m.updates) - len(kept)
	m.updates = kept
	if removed > 0 {
		m.logger.Info("cleared old updates", "removed", removed)
	}
	return removed, m.save()
}

// Stats summarises the updates log.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		TotalUpdates:     len(m.updates),
		RecentUpdates24h: len(m.recent(24 * time.Hour)),
		UpdatesByAction:  map[string]int{retrieval.ActionAdd: 0, retrieval.ActionUpdate: 0, retrieval.ActionDelete: 0},
		UpdatesByType:    map[string]int{},
	}
	for _, u := range m.updates {
		stats.UpdatesByAction[u.Action]++
		stats.UpdatesByType[u.Type]++
		if u.Timestamp.IsZero() {
			continue
		}
		if stats.LastUpdate == nil || u.Timestamp.After(*stats.LastUpdate) {
			ts := u.Timestamp
			stats.LastUpdate = &ts
		}
	}
	if m.sink != nil {
		ts := m.sink.Timestamp()
		if !ts.IsZero() {
			stats.KBLastUpdated = &ts
		}
	}
	return stats
}
