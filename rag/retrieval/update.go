package retrieval

import (
	"strings"
	"time"

	"github.com/sweetpotato0/wanderai/rag/document"
)

// Update actions.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Update is a single knowledge base change pushed through a webhook.
type Update struct {
	Action    string         `json:"action"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// SourceFor maps an update type to the knowledge base file it belongs to.
func SourceFor(updateType string) string {
	switch strings.ToLower(updateType) {
	case "tip":
		return "tips.json"
	case "category":
		return "categories.json"
	default:
		return "places.json"
	}
}

// applyUpdates returns docs with every update applied in order.
func applyUpdates(docs []document.Document, updates []Update) []document.Document {
	for _, u := range updates {
		target := cleanDocument(document.FromRecord(u.Data, SourceFor(u.Type)))
		idx := findDocument(docs, target)
		switch u.Action {
		case ActionDelete:
			if idx >= 0 {
				docs = append(docs[:idx:idx], docs[idx+1:]...)
			}
		default:
			if idx >= 0 {
				docs[idx] = target
			} else {
				docs = append(docs, target)
			}
		}
	}
	return docs
}

func findDocument(docs []document.Document, target document.Document) int {
	name := strings.ToLower(target.DisplayName())
	for i, doc := range docs {
		if target.ID != "" && doc.ID == target.ID {
			return i
		}
		if name != "" && strings.ToLower(doc.DisplayName()) == name {
			return i
		}
	}
	return -1
}
