package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// Document is one knowledge base record, typically a place, a tip or a
// category description loaded from a JSON file.
type Document struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Title       string         `json:"title,omitempty"`
	Category    string         `json:"category,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	Tips        string         `json:"tips,omitempty"`
	Distance    string         `json:"distance,omitempty"`
	Cost        string         `json:"cost,omitempty"`
	BestTime    string         `json:"best_time,omitempty"`
	Source      string         `json:"source"`
	Fields      map[string]any `json:"fields,omitempty"`
}

var docCounter atomic.Int64

// FromRecord builds a Document from a raw JSON object. Values that are
// numbers, lists or nested objects are flattened into display strings.
func FromRecord(record map[string]any, source string) Document {
	doc := Document{
		ID:          Stringify(record["id"]),
		Name:        Stringify(record["name"]),
		Title:       Stringify(record["title"]),
		Category:    Stringify(record["category"]),
		Tags:        stringList(record["tags"]),
		Description: Stringify(record["description"]),
		Content:     Stringify(record["content"]),
		Tips:        Stringify(record["tips"]),
		Distance:    Stringify(firstPresent(record, "distance", "distance_from_pune")),
		Cost:        Stringify(firstPresent(record, "cost", "estimated_cost", "budget")),
		BestTime:    Stringify(firstPresent(record, "best_time", "best_time_to_visit")),
		Source:      source,
		Fields:      record,
	}
	EnsureDocumentID(&doc)
	return doc
}

// EnsureDocumentID makes sure every document has a stable identifier.
func EnsureDocumentID(doc *Document) {
	if doc == nil || doc.ID != "" {
		return
	}
	if key := Slug(doc.DisplayName()); key != "" {
		doc.ID = key
		return
	}
	doc.ID = fmt.Sprintf("doc_%d", docCounter.Add(1))
}

// DisplayName returns the name, falling back to the title.
func (d Document) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Title
}

// Field returns the string form of a searchable field.
func (d Document) Field(name string) string {
	switch name {
	case "name":
		return d.Name
	case "title":
		return d.Title
	case "category":
		return d.Category
	case "tags":
		return strings.Join(d.Tags, " ")
	case "description":
		return d.Description
	case "content":
		return d.Content
	case "tips":
		return d.Tips
	case "distance":
		return d.Distance
	case "cost":
		return d.Cost
	case "best_time":
		return d.BestTime
	case "source":
		return d.Source
	}
	if d.Fields != nil {
		return Stringify(d.Fields[name])
	}
	return ""
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	if d.Tags != nil {
		out.Tags = append([]string(nil), d.Tags...)
	}
	if d.Fields != nil {
		out.Fields = make(map[string]any, len(d.Fields))
		for k, v := range d.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Slug lowercases s and joins its alphanumeric runs with dashes.
func Slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if sb.Len() > 0 && !dash {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

// Stringify renders a decoded JSON value for display.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := Stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case []string:
		return strings.Join(val, "; ")
	case map[string]any:
		if s, ok := val["value"]; ok {
			return Stringify(s)
		}
		if s, ok := val["amount"]; ok {
			return Stringify(s)
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+Stringify(val[k]))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

func stringList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := Stringify(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := Stringify(val); s != "" {
			return []string{s}
		}
		return nil
	}
}

func firstPresent(record map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := record[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
