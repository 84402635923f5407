package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/storysync/internal/queue"
	"github.com/maheshrc27/storysync/internal/repository"
)

type VerificationHandler struct {
	runs        repository.VerificationRunRepository
	history     repository.VerificationHistoryRepository
	AsynqClient *asynq.Client
}

func NewVerificationHandler(
	runs repository.VerificationRunRepository,
	history repository.VerificationHistoryRepository,
	asynqClient *asynq.Client) *VerificationHandler {
	return &VerificationHandler{runs: runs, history: history, AsynqClient: asynqClient}
}

// ListRuns returns recent run summaries, newest first.
func (h *VerificationHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	runs, err := h.runs.ListRecent(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list verification runs",
		})
	}

	return c.Status(fiber.StatusOK).JSON(runs)
}

// PostHistory returns the decision trail of one post.
func (h *VerificationHandler) PostHistory(c *fiber.Ctx) error {
	postID := c.QueryInt("post_id", 0)
	if postID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "post_id is required",
		})
	}

	entries, err := h.history.ListByPostID(c.Context(), int64(postID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list verification history",
		})
	}

	return c.Status(fiber.StatusOK).JSON(entries)
}

// TriggerRun enqueues a verification run immediately.
func (h *VerificationHandler) TriggerRun(c *fiber.Ctx) error {
	err := queue.EnqueueVerification(h.AsynqClient, queue.VerifyStoriesPayload{TriggeredBy: "manual"}, 0)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error scheduling verification run",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Verification run scheduled",
	})
}
