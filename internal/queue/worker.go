package queue

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/storysync/internal/models"
	"github.com/maheshrc27/storysync/internal/verify"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

func (q *Queue) HandleVerifyStoriesTask(ctx context.Context, task *asynq.Task) error {
	var payload VerifyStoriesPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return q.RunVerification(ctx, payload.TriggeredBy)
}

// RunVerification executes one reconciler run and records its
// outcome: a run summary row, one history row per decision, and a
// best-effort report upload to R2.
func (q *Queue) RunVerification(ctx context.Context, triggeredBy string) error {
	runID, err := gonanoid.New()
	if err != nil {
		return err
	}

	started := time.Now()

	hook := func(ctx context.Context, postID int64, update *models.VerificationUpdate) {
		_, err := q.history.Create(ctx, &models.VerificationHistory{
			RunID:     runID,
			PostID:    postID,
			Status:    update.Status,
			ErrorCode: update.ErrorCode,
		})
		if err != nil {
			log.Printf("Error saving verification history for PostID %d: %v", postID, err)
		}
	}

	reconciler := verify.NewReconciler(q.cfg, q.posts, q.ig, hook)
	summary, err := reconciler.RunOnce(ctx, started)
	if err != nil {
		slog.Error("verification run failed", "run_id", runID, "error", err.Error())
		return err
	}

	run := &models.VerificationRun{
		ID:          runID,
		Processed:   summary.Processed,
		Verified:    summary.Verified,
		Failed:      summary.Failed,
		Rescheduled: summary.Rescheduled,
		Skipped:     summary.Skipped,
		StartedAt:   started,
		FinishedAt:  time.Now(),
	}

	if err := q.runs.Create(ctx, run); err != nil {
		log.Printf("Error saving verification run %s: %v", runID, err)
	}

	if err := q.report.ArchiveRun(ctx, run); err != nil {
		log.Printf("Error archiving verification run %s: %v", runID, err)
	}

	log.Printf("Verification run %s (trigger=%s): processed=%d verified=%d failed=%d rescheduled=%d skipped=%d",
		runID, triggeredBy, summary.Processed, summary.Verified, summary.Failed, summary.Rescheduled, summary.Skipped)

	return nil
}
