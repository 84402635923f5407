package job

import (
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/storysync/internal/queue"
)

// VerificationJob is the periodic trigger: each cron tick enqueues
// one verification run, so scheduled and manual runs serialize
// through the same worker.
type VerificationJob struct {
	asynqClient *asynq.Client
}

func NewVerificationJob(asynqClient *asynq.Client) *VerificationJob {
	return &VerificationJob{asynqClient: asynqClient}
}

func (j *VerificationJob) Trigger() {
	err := queue.EnqueueVerification(j.asynqClient, queue.VerifyStoriesPayload{TriggeredBy: "cron"}, 0)
	if err != nil {
		slog.Info("Unable to enqueue verification run", "error", err.Error())
	}
}
