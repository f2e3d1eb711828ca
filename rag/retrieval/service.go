package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/pkg/metrics"
	"github.com/sweetpotato0/wanderai/rag/document"
	"github.com/sweetpotato0/wanderai/rag/preprocess"
)

// DefaultTopics are offered when the knowledge base has no categories.
var DefaultTopics = []string{"destinations", "treks", "beaches"}

// Retriever is the read side of the knowledge base used by the rest of the
// system.
type Retriever interface {
	RetrieveWithSources(ctx context.Context, query string, topK int) (Result, error)
	Search(ctx context.Context, query string, topK int) (string, error)
}

// Config configures the retrieval service.
type Config struct {
	Ignore []string
	Logger *slog.Logger
}

// Option customises the service config.
type Option func(*Config)

// WithIgnore skips files with the given base names when loading.
func WithIgnore(names ...string) Option {
	return func(cfg *Config) {
		for _, n := range names {
			if n != "" {
				cfg.Ignore = append(cfg.Ignore, filepath.Base(n))
			}
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

// Service serves keyword retrieval over a directory of JSON files.
type Service struct {
	path   string
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	index     *Index
	applied   []Update
	timestamp time.Time

	pendingMu sync.Mutex
	pending   []Update

	dirty atomic.Bool
	group singleflight.Group
}

// New creates a service for the knowledge base directory at path and loads
// it. A missing directory yields an empty index.
func New(ctx context.Context, path string, opts ...Option) (*Service, error) {
	cfg := Config{Logger: logging.WithComponent("retrieval")}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Service{
		path:   path,
		cfg:    cfg,
		logger: cfg.Logger,
		index:  NewIndex(nil),
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromDocuments creates an in-memory service over docs.
func NewFromDocuments(docs []document.Document, opts ...Option) *Service {
	cfg := Config{Logger: logging.WithComponent("retrieval")}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		cfg:       cfg,
		logger:    cfg.Logger,
		index:     NewIndex(docs),
		timestamp: time.Now(),
	}
}

// Path returns the knowledge base directory.
func (s *Service) Path() string {
	return s.path
}

// Load reads every JSON file in the knowledge base directory and rebuilds
// the index. Previously applied webhook updates are re-applied on top.
func (s *Service) Load(ctx context.Context) error {
	docs, err := s.readDocuments(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	docs = applyUpdates(docs, s.applied)
	s.index = NewIndex(docs)
	s.timestamp = time.Now()
	s.mu.Unlock()

	metrics.KnowledgeBaseDocuments.Set(float64(len(docs)))
	s.logger.Info("knowledge base loaded", "path", s.path, "documents", len(docs))
	return nil
}

func (s *Service) readDocuments(ctx context.Context) ([]document.Document, error) {
	if s.path == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("knowledge base directory not found", "path", s.path)
			return nil, nil
		}
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}

	var docs []document.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".json") || s.ignored(name) {
			continue
		}
		records, err := readRecords(filepath.Join(s.path, name))
		if err != nil {
			s.logger.Warn("skipping knowledge base file", "file", name, "error", err)
			continue
		}
		for _, record := range records {
			docs = append(docs, cleanDocument(document.FromRecord(record, name)))
		}
	}
	return docs, nil
}

func (s *Service) ignored(name string) bool {
	for _, ig := range s.cfg.Ignore {
		if strings.EqualFold(ig, name) {
			return true
		}
	}
	return false
}

func readRecords(path string) ([]map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	switch v := payload.(type) {
	case []any:
		return objects(v), nil
	case map[string]any:
		for _, key := range []string{"data", "items"} {
			if list, ok := v[key].([]any); ok {
				return objects(list), nil
			}
		}
		return []map[string]any{v}, nil
	}
	return nil, fmt.Errorf("unsupported layout in %s", filepath.Base(path))
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func cleanDocument(doc document.Document) document.Document {
	doc.Description = preprocess.Preprocess(doc.Description)
	doc.Content = preprocess.Preprocess(doc.Content)
	doc.Tips = preprocess.Preprocess(doc.Tips)
	return doc
}

// Retrieve returns up to topK documents matching query and filters.
func (s *Service) Retrieve(ctx context.Context, query string, topK int, filters map[string]string) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	return idx.Search(query, topK, filters), nil
}

// RetrieveWithSources returns ranked documents together with their sources
// and extracted facts.
func (s *Service) RetrieveWithSources(ctx context.Context, query string, topK int) (Result, error) {
	hits, err := s.Retrieve(ctx, query, topK, nil)
	if err != nil {
		return Result{}, err
	}
	return NewResult(hits), nil
}

// Search returns the formatted context block for query.
func (s *Service) Search(ctx context.Context, query string, topK int) (string, error) {
	hits, err := s.Retrieve(ctx, query, topK, nil)
	if err != nil {
		return "", err
	}
	return FormatContext(hits, 0), nil
}

// Documents returns a copy of every indexed document.
func (s *Service) Documents() []document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.index.Documents()
	out := make([]document.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// Timestamp returns the time of the last load or refresh.
func (s *Service) Timestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timestamp
}

// Topics lists up to limit distinct categories present in the knowledge base.
func (s *Service) Topics(limit int) []string {
	s.mu.RLock()
	docs := s.index.Documents()
	s.mu.RUnlock()

	seen := make(map[string]struct{})
	var topics []string
	for _, doc := range docs {
		topic := strings.ToLower(strings.TrimSpace(doc.Category))
		if topic == "" {
			if fields := strings.Fields(doc.Title); len(fields) > 0 {
				topic = strings.ToLower(fields[0])
			}
		}
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	if len(topics) == 0 {
		topics = append([]string(nil), DefaultTopics...)
	}
	if limit > 0 && len(topics) > limit {
		topics = topics[:limit]
	}
	return topics
}

// AddUpdate queues a webhook update for the next refresh.
func (s *Service) AddUpdate(u Update) {
	s.pendingMu.Lock()
	s.pending = append(s.pending, u)
	s.pendingMu.Unlock()
}

// MarkDirty flags the on-disk knowledge base as changed.
func (s *Service) MarkDirty() {
	s.dirty.Store(true)
}

// ConditionalRefresh applies pending updates and reloads from disk when the
// knowledge base changed. It reports whether a refresh happened. Concurrent
// callers share one refresh.
func (s *Service) ConditionalRefresh(ctx context.Context) (bool, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s *Service) refresh(ctx context.Context) (bool, error) {
	s.pendingMu.Lock()
	pending := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	reload := s.dirty.Swap(false)
	if len(pending) == 0 && !reload {
		return false, nil
	}

	if reload {
		s.mu.Lock()
		s.applied = append(s.applied, pending...)
		s.mu.Unlock()
		if err := s.Load(ctx); err != nil {
			s.dirty.Store(true)
			return false, err
		}
	} else {
		s.mu.Lock()
		s.applied = append(s.applied, pending...)
		docs := append([]document.Document(nil), s.index.Documents()...)
		docs = applyUpdates(docs, pending)
		s.index = NewIndex(docs)
		s.timestamp = time.Now()
		s.mu.Unlock()
		metrics.KnowledgeBaseDocuments.Set(float64(len(docs)))
	}

	metrics.KnowledgeBaseRefreshes.Inc()
	s.logger.Info("knowledge base refreshed", "updates", len(pending), "reloaded", reload)
	return true, nil
}
