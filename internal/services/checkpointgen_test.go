package services

import (
	"strings"
	"testing"
)

func TestParseSuggestionsPlainJSON(t *testing.T) {
	raw := `[
		{"seq": 1, "title": "Intro to indexing", "description": "B-trees.", "estimated_minutes": 5},
		{"seq": 2, "title": "Query planning", "description": "Cost models.", "estimated_minutes": 8}
	]`

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}
	if suggestions[0].Title != "Intro to indexing" || suggestions[0].EstimatedMinutes != 5 {
		t.Fatalf("unexpected first suggestion: %+v", suggestions[0])
	}
}

func TestParseSuggestionsStripsMarkdownFence(t *testing.T) {
	raw := "```json\n[{\"seq\": 1, \"title\": \"Topic\", \"estimated_minutes\": 6}]\n```"

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].Title != "Topic" {
		t.Fatalf("unexpected suggestions: %+v", suggestions)
	}
}

func TestParseSuggestionsExtractsEmbeddedArray(t *testing.T) {
	raw := `Here are your checkpoints: [{"seq": 1, "title": "Only one", "estimated_minutes": 10}] Hope that helps!`

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].Title != "Only one" {
		t.Fatalf("unexpected suggestions: %+v", suggestions)
	}
}

func TestParseSuggestionsClampsMinutes(t *testing.T) {
	raw := `[
		{"seq": 1, "title": "Too short", "estimated_minutes": 1},
		{"seq": 2, "title": "Too long", "estimated_minutes": 45}
	]`

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if suggestions[0].EstimatedMinutes != 3 {
		t.Fatalf("expected minutes clamped up to 3, got %d", suggestions[0].EstimatedMinutes)
	}
	if suggestions[1].EstimatedMinutes != 15 {
		t.Fatalf("expected minutes clamped down to 15, got %d", suggestions[1].EstimatedMinutes)
	}
}

func TestParseSuggestionsSkipsUntitledAndCaps(t *testing.T) {
	var items []string
	items = append(items, `{"seq": 0, "title": "", "estimated_minutes": 5}`)
	for i := 0; i < 20; i++ {
		items = append(items, `{"seq": 1, "title": "Topic", "estimated_minutes": 5}`)
	}
	raw := "[" + strings.Join(items, ",") + "]"

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(suggestions) != 15 {
		t.Fatalf("expected cap of 15 suggestions, got %d", len(suggestions))
	}
}

func TestParseSuggestionsRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "[]", `[{"seq": 1, "title": ""}]`} {
		if _, err := parseSuggestions(raw); err == nil {
			t.Errorf("expected parse failure for %q", raw)
		}
	}
}

func TestSampleIndexes(t *testing.T) {
	// Fewer pages than the cap: every index, in order.
	got := sampleIndexes(3, 10)
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Fatalf("expected [0 1 2], got %v", got)
	}

	// More pages than the cap: exactly max indexes, spread across the deck.
	got = sampleIndexes(100, 10)
	if len(got) != 10 {
		t.Fatalf("expected 10 sampled indexes, got %d", len(got))
	}
	if got[0] != 0 {
		t.Fatalf("expected the first slide sampled, got %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("expected strictly increasing indexes, got %v", got)
		}
		if got[i] >= 100 {
			t.Fatalf("expected indexes under the page count, got %v", got)
		}
	}
}
