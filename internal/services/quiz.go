package services

import (
	"strings"

	"aula-backend/internal/models"
)

// QuizResult is the server-side grading outcome for one attempt.
type QuizResult struct {
	Score    int  `json:"score"`
	MaxScore int  `json:"max_score"`
	Passed   bool `json:"passed"`
}

// GradeQuiz scores submitted answers keyed by question ID. Short answers
// compare case-insensitively after trimming; everything else is an exact
// match. Pass mark is the session's quiz_pass_score, or 60% of max when
// unset.
func GradeQuiz(questions []*models.QuizQuestion, answers map[string]string, passScore *int) QuizResult {
	result := QuizResult{}
	for _, q := range questions {
		result.MaxScore += q.Points
		answer, ok := answers[q.ID.String()]
		if !ok {
			continue
		}
		if answersMatch(q, answer) {
			result.Score += q.Points
		}
	}

	threshold := result.MaxScore * 60 / 100
	if passScore != nil {
		threshold = *passScore
	}
	result.Passed = result.Score >= threshold
	return result
}

func answersMatch(q *models.QuizQuestion, answer string) bool {
	if q.QuestionType == models.QuestionShortAnswer {
		return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))
	}
	return answer == q.CorrectAnswer
}
