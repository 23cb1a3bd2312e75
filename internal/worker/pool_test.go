package worker

import (
	"testing"

	"aula-backend/internal/models"
)

func TestQueueName(t *testing.T) {
	tests := []struct {
		jobType string
		want    string
	}{
		{models.JobTypeSlideConversion, QueueSlideConversion},
		{models.JobTypeCheckpointGeneration, QueueCheckpointGeneration},
	}

	for _, tc := range tests {
		if got := QueueName(tc.jobType); got != tc.want {
			t.Errorf("QueueName(%q) = %q, want %q", tc.jobType, got, tc.want)
		}
	}
}
