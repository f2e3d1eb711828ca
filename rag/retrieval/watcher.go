package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch marks the service dirty whenever a JSON file in the knowledge base
// directory changes. It blocks until ctx is cancelled.
func (s *Service) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("watch: knowledge base path not set")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.path); err != nil {
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	s.logger.Info("watching knowledge base", "path", s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if s.relevant(event) {
				s.logger.Debug("knowledge base changed", "file", event.Name, "op", event.Op.String())
				s.MarkDirty()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("knowledge base watcher error", "error", err)
		}
	}
}

func (s *Service) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return strings.EqualFold(filepath.Ext(name), ".json") && !s.ignored(name)
}
