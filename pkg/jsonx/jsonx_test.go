package jsonx

import (
	stderrors "errors"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/sweetpotato0/wanderai/errors"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want any
	}{
		{"plain", `{"budget": 5000}`, map[string]any{"budget": 5000.0}},
		{"fenced", "```json\n{\"budget\": 5000}\n```", map[string]any{"budget": 5000.0}},
		{"prefix text", `Sure! Here you go: {"budget": 5000} hope it helps`, map[string]any{"budget": 5000.0}},
		{"array", `Results: [{"name": "Lonavala"}]`, []any{map[string]any{"name": "Lonavala"}}},
		{"wrapped", `{"data": {"name": "Lonavala"}}`, map[string]any{"name": "Lonavala"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.in)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %#v want %#v", got, tc.want)
			}
		})
	}
}

func TestExtractFailure(t *testing.T) {
	_, err := Extract("no json here")
	if !stderrors.Is(err, errors.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	_, err = ExtractObject(`[1, 2]`)
	if !stderrors.Is(err, errors.ErrSchema) {
		t.Fatalf("expected ErrSchema for array, got %v", err)
	}
}

func TestNormalizeWrappers(t *testing.T) {
	for _, key := range WrapperKeys {
		t.Run(key, func(t *testing.T) {
			in := map[string]any{key: map[string]any{"name": "Lonavala"}, "note": "kept"}
			got := Normalize(in)
			want := map[string]any{"name": "Lonavala", "note": "kept"}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("got %#v want %#v", got, want)
			}
		})
	}
}

func TestNormalizePriority(t *testing.T) {
	in := map[string]any{
		"data":      map[string]any{"from": "data"},
		"itinerary": map[string]any{"from": "itinerary"},
	}
	got := Normalize(in).(map[string]any)
	if got["from"] != "itinerary" {
		t.Fatalf("expected itinerary to win, got %v", got)
	}
}

func TestNormalizeListAndSingleKey(t *testing.T) {
	list := []any{map[string]any{"name": "A"}}
	if got := Normalize(map[string]any{"results": list}); !reflect.DeepEqual(got, list) {
		t.Fatalf("list wrapper: %#v", got)
	}
	if got := Normalize(map[string]any{"destinations": list}); !reflect.DeepEqual(got, list) {
		t.Fatalf("single key: %#v", got)
	}
	flat := map[string]any{"name": "A"}
	if got := Normalize(flat); !reflect.DeepEqual(got, flat) {
		t.Fatalf("flat object changed: %#v", got)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	inner := map[string]any{"name": "A"}
	in := map[string]any{"data": inner, "extra": 1.0}
	Normalize(in)
	if _, ok := inner["extra"]; ok {
		t.Fatalf("inner payload mutated")
	}
}

func TestNormalizeBoundedDepth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		levels := rapid.IntRange(0, 10).Draw(t, "levels")
		key := rapid.SampledFrom(WrapperKeys).Draw(t, "key")

		payload := map[string]any{"name": "Lonavala", "days": 2.0}
		var v any = payload
		for i := 0; i < levels; i++ {
			v = map[string]any{key: v}
		}

		got := Normalize(v)
		remaining := levels - MaxDepth
		if remaining < 0 {
			remaining = 0
		}
		want := any(payload)
		for i := 0; i < remaining; i++ {
			want = map[string]any{key: want}
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("levels=%d: got %#v want %#v", levels, got, want)
		}
	})
}
