package models

import "testing"

func TestReactionTallyShouldFlag(t *testing.T) {
	tests := []struct {
		name  string
		tally ReactionTally
		want  bool
	}{
		{"empty slide", ReactionTally{}, false},
		{"all understood", ReactionTally{Understood: 10}, false},
		{"count threshold met", ReactionTally{Understood: 20, Question: 2, Hard: 1}, true},
		{"count just below", ReactionTally{Understood: 20, Question: 1, Hard: 1}, false},
		{"rate threshold met", ReactionTally{Understood: 2, Hard: 2}, true},
		{"rate just below", ReactionTally{Understood: 3, Hard: 1}, false},
		{"hards and questions both count", ReactionTally{Question: 2, Hard: 1}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tally.ShouldFlag(3, 0.5); got != tc.want {
				t.Errorf("ShouldFlag(3, 0.5) = %v, want %v for %+v", got, tc.want, tc.tally)
			}
		})
	}
}

func TestReactionTallyCounts(t *testing.T) {
	tally := ReactionTally{Understood: 4, Question: 2, Hard: 3}

	if tally.Total() != 9 {
		t.Fatalf("expected total 9, got %d", tally.Total())
	}
	if tally.ProblemCount() != 5 {
		t.Fatalf("expected 5 problem reactions, got %d", tally.ProblemCount())
	}
}
