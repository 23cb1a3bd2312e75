package services

import (
	"testing"

	"github.com/google/uuid"

	"aula-backend/internal/models"
)

func question(qType, correct string, points int) *models.QuizQuestion {
	return &models.QuizQuestion{
		ID:            uuid.New(),
		QuestionType:  qType,
		CorrectAnswer: correct,
		Points:        points,
	}
}

func TestGradeQuizScoring(t *testing.T) {
	q1 := question(models.QuestionMultipleChoice, "b", 10)
	q2 := question(models.QuestionTrueFalse, "true", 5)
	q3 := question(models.QuestionShortAnswer, "Photosynthesis", 15)
	questions := []*models.QuizQuestion{q1, q2, q3}

	answers := map[string]string{
		q1.ID.String(): "b",
		q2.ID.String(): "false",
		q3.ID.String(): "  photosynthesis ",
	}

	result := GradeQuiz(questions, answers, nil)
	if result.MaxScore != 30 {
		t.Fatalf("expected max score 30, got %d", result.MaxScore)
	}
	if result.Score != 25 {
		t.Fatalf("expected score 25, got %d", result.Score)
	}
	if !result.Passed {
		t.Fatalf("expected 25/30 to pass the default 60%% mark")
	}
}

func TestGradeQuizShortAnswerIsCaseInsensitive(t *testing.T) {
	q := question(models.QuestionShortAnswer, "Mitochondria", 10)

	tests := []struct {
		name   string
		answer string
		want   int
	}{
		{"exact", "Mitochondria", 10},
		{"lowercase", "mitochondria", 10},
		{"padded", "  MITOCHONDRIA  ", 10},
		{"wrong", "ribosome", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := GradeQuiz([]*models.QuizQuestion{q}, map[string]string{q.ID.String(): tc.answer}, nil)
			if result.Score != tc.want {
				t.Errorf("expected score %d, got %d", tc.want, result.Score)
			}
		})
	}
}

func TestGradeQuizMultipleChoiceIsExact(t *testing.T) {
	q := question(models.QuestionMultipleChoice, "B", 10)

	result := GradeQuiz([]*models.QuizQuestion{q}, map[string]string{q.ID.String(): "b"}, nil)
	if result.Score != 0 {
		t.Fatalf("expected mismatched case to score 0 for multiple choice, got %d", result.Score)
	}
}

func TestGradeQuizPassThreshold(t *testing.T) {
	q1 := question(models.QuestionTrueFalse, "true", 10)
	q2 := question(models.QuestionTrueFalse, "true", 10)
	questions := []*models.QuizQuestion{q1, q2}
	half := map[string]string{q1.ID.String(): "true"}

	// 10/20 misses the default 60% mark.
	if result := GradeQuiz(questions, half, nil); result.Passed {
		t.Fatalf("expected 10/20 to fail the default threshold")
	}

	// An explicit pass score overrides the default.
	pass := 10
	if result := GradeQuiz(questions, half, &pass); !result.Passed {
		t.Fatalf("expected 10/20 to pass an explicit threshold of 10")
	}

	strict := 20
	if result := GradeQuiz(questions, half, &strict); result.Passed {
		t.Fatalf("expected 10/20 to fail an explicit threshold of 20")
	}
}

func TestGradeQuizUnansweredQuestions(t *testing.T) {
	q := question(models.QuestionShortAnswer, "42", 10)

	result := GradeQuiz([]*models.QuizQuestion{q}, map[string]string{}, nil)
	if result.Score != 0 || result.MaxScore != 10 {
		t.Fatalf("expected 0/10 with no answers, got %d/%d", result.Score, result.MaxScore)
	}
}

func TestGradeQuizEmptyQuiz(t *testing.T) {
	result := GradeQuiz(nil, nil, nil)
	if result.MaxScore != 0 || !result.Passed {
		t.Fatalf("expected an empty quiz to trivially pass with max 0, got %+v", result)
	}
}
