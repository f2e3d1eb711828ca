package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/rag/document"
)

func writeKB(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

const placesJSON = `[
  {"name": "Lonavala", "category": "hill station", "description": "Popular monsoon trek spot with waterfalls.",
   "distance_from_pune": "64 km", "estimated_cost": "1500 INR", "best_time_to_visit": "June to September"},
  {"name": "Alibaug", "category": "beach", "description": "<p>Coastal town with <b>quiet</b> beaches.</p>",
   "distance": "95 km", "tips": "Take the ferry from Mumbai."}
]`

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := writeKB(t, map[string]string{
		"places.json":      placesJSON,
		"tips.json":        `{"data": [{"title": "Monsoon safety", "content": "Avoid slippery trails after heavy rain."}]}`,
		"single.json":      `{"name": "Sinhagad Fort", "category": "fort", "description": "Historic hill fortress."}`,
		"updates_log.json": `{"updates": [{"name": "Ghost"}], "count": 1}`,
		"notes.txt":        "ignored",
		"broken.json":      `{not json`,
	})
	svc, err := New(context.Background(), dir, WithIgnore("updates_log.json"), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestLoadLayouts(t *testing.T) {
	svc := newTestService(t)
	docs := svc.Documents()
	if len(docs) != 4 {
		t.Fatalf("expected 4 documents, got %d", len(docs))
	}
	sources := map[string]int{}
	for _, d := range docs {
		sources[d.Source]++
		if d.Name == "Ghost" {
			t.Fatalf("updates log should not be indexed")
		}
	}
	if sources["places.json"] != 2 || sources["tips.json"] != 1 || sources["single.json"] != 1 {
		t.Fatalf("unexpected sources: %v", sources)
	}
	for _, d := range docs {
		if d.Name == "Alibaug" && strings.Contains(d.Description, "<") {
			t.Fatalf("html not cleaned: %q", d.Description)
		}
	}
}

func TestMissingDirectoryIsEmpty(t *testing.T) {
	svc, err := New(context.Background(), filepath.Join(t.TempDir(), "missing"), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := svc.RetrieveWithSources(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("RetrieveWithSources: %v", err)
	}
	if !res.Empty() || len(res.Sources) != 0 || len(res.Facts) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestRetrieveWithSources(t *testing.T) {
	svc := newTestService(t)
	res, err := svc.RetrieveWithSources(context.Background(), "Lonavala trek", 3)
	if err != nil {
		t.Fatalf("RetrieveWithSources: %v", err)
	}
	if len(res.Documents) == 0 || res.Documents[0].Document.Name != "Lonavala" {
		t.Fatalf("expected Lonavala first, got %+v", res.Documents)
	}
	if res.Sources[0] != "places.json" {
		t.Fatalf("unexpected sources: %v", res.Sources)
	}
	want := []string{
		"Lonavala: Popular monsoon trek spot with waterfalls.",
		"Lonavala distance: 64 km",
		"Lonavala cost: 1500 INR",
		"Lonavala best time: June to September",
	}
	for i, w := range want {
		if res.Facts[i].Text != w {
			t.Fatalf("fact %d: got %q want %q", i, res.Facts[i].Text, w)
		}
		if res.Facts[i].Source != "places.json" {
			t.Fatalf("fact %d source: %q", i, res.Facts[i].Source)
		}
	}
}

func TestSourcesAreUnique(t *testing.T) {
	svc := newTestService(t)
	res, err := svc.RetrieveWithSources(context.Background(), "Lonavala Alibaug", 5)
	if err != nil {
		t.Fatalf("RetrieveWithSources: %v", err)
	}
	if len(res.Documents) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(res.Documents))
	}
	if len(res.Sources) != 1 || res.Sources[0] != "places.json" {
		t.Fatalf("expected one source, got %v", res.Sources)
	}
}

func TestRetrieveFilters(t *testing.T) {
	svc := newTestService(t)
	hits, err := svc.Retrieve(context.Background(), "Lonavala Alibaug", 5, map[string]string{"category": "Beach"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) != 1 || hits[0].Document.Name != "Alibaug" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestSearchFormatting(t *testing.T) {
	svc := newTestService(t)
	out, err := svc.Search(context.Background(), "Lonavala trek", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, want := range []string{
		"[Document 1] (Relevance: 4.0)",
		"Name: Lonavala",
		"Category: hill station",
		"Distance: 64 km",
		"Best Time: June to September",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}

	empty, err := svc.Search(context.Background(), "zzzz", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if empty != NoDocumentsFound {
		t.Fatalf("unexpected empty output %q", empty)
	}
}

func TestStopwordsDoNotMatch(t *testing.T) {
	svc := NewFromDocuments([]document.Document{
		{ID: "x", Name: "The Fort", Source: "places.json"},
	}, WithLogger(logging.Discard()))
	hits, err := svc.Retrieve(context.Background(), "The Hidden Palace", 3, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("stopword matched: %+v", hits)
	}
}

func TestConditionalRefreshAppliesUpdates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	refreshed, err := svc.ConditionalRefresh(ctx)
	if err != nil || refreshed {
		t.Fatalf("expected no refresh, got %v %v", refreshed, err)
	}

	before := svc.Timestamp()
	svc.AddUpdate(Update{Action: ActionAdd, Type: "place", Data: map[string]any{"name": "Tamhini Ghat", "description": "Scenic ghat road."}})
	svc.AddUpdate(Update{Action: ActionDelete, Type: "place", Data: map[string]any{"name": "Alibaug"}})
	refreshed, err = svc.ConditionalRefresh(ctx)
	if err != nil || !refreshed {
		t.Fatalf("expected refresh, got %v %v", refreshed, err)
	}
	if svc.Timestamp().Before(before) {
		t.Fatalf("timestamp went backwards")
	}

	res, _ := svc.RetrieveWithSources(ctx, "Tamhini", 3)
	if res.Empty() || res.Documents[0].Document.Source != "places.json" {
		t.Fatalf("added place not found: %+v", res)
	}
	res, _ = svc.RetrieveWithSources(ctx, "Alibaug", 3)
	if !res.Empty() {
		t.Fatalf("deleted place still indexed")
	}

	// Updates survive a reload from disk.
	svc.MarkDirty()
	refreshed, err = svc.ConditionalRefresh(ctx)
	if err != nil || !refreshed {
		t.Fatalf("expected reload, got %v %v", refreshed, err)
	}
	res, _ = svc.RetrieveWithSources(ctx, "Tamhini", 3)
	if res.Empty() {
		t.Fatalf("update lost after reload")
	}
}

func TestConditionalRefreshUpdateReplaces(t *testing.T) {
	svc := newTestService(t)
	svc.AddUpdate(Update{Action: ActionUpdate, Type: "place", Data: map[string]any{"name": "Lonavala", "description": "Now with a new viewpoint."}})
	if _, err := svc.ConditionalRefresh(context.Background()); err != nil {
		t.Fatalf("ConditionalRefresh: %v", err)
	}
	count := 0
	for _, d := range svc.Documents() {
		if d.Name == "Lonavala" {
			count++
			if d.Description != "Now with a new viewpoint." {
				t.Fatalf("description not updated: %q", d.Description)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected one Lonavala, got %d", count)
	}
}

func TestConditionalRefreshConcurrent(t *testing.T) {
	svc := newTestService(t)
	svc.MarkDirty()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ConditionalRefresh(context.Background()); err != nil {
				t.Errorf("ConditionalRefresh: %v", err)
			}
		}()
	}
	wg.Wait()
	if len(svc.Documents()) != 4 {
		t.Fatalf("unexpected document count %d", len(svc.Documents()))
	}
}

func TestTopics(t *testing.T) {
	svc := newTestService(t)
	got := svc.Topics(3)
	want := []string{"beach", "fort", "hill station"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("topics: got %v want %v", got, want)
	}

	empty := NewFromDocuments(nil, WithLogger(logging.Discard()))
	if strings.Join(empty.Topics(5), ",") != "destinations,treks,beaches" {
		t.Fatalf("unexpected default topics %v", empty.Topics(5))
	}
}

func TestWatcherRelevance(t *testing.T) {
	svc := NewFromDocuments(nil, WithIgnore("updates_log.json"), WithLogger(logging.Discard()))
	cases := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/kb/places.json", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/kb/places.json", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/kb/updates_log.json", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/kb/readme.md", Op: fsnotify.Create}, false},
	}
	for _, tc := range cases {
		if got := svc.relevant(tc.event); got != tc.want {
			t.Fatalf("%v: got %v want %v", tc.event, got, tc.want)
		}
	}
}
