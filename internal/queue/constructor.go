package queue

import (
	"github.com/maheshrc27/storysync/internal/repository"
	"github.com/maheshrc27/storysync/internal/service"
	"github.com/maheshrc27/storysync/internal/verify"
)

type Queue struct {
	cfg     verify.Config
	posts   repository.PostRepository
	ig      service.InstagramService
	runs    repository.VerificationRunRepository
	history repository.VerificationHistoryRepository
	report  *service.ReportService
}

func NewQueue(
	cfg verify.Config,
	posts repository.PostRepository,
	ig service.InstagramService,
	runs repository.VerificationRunRepository,
	history repository.VerificationHistoryRepository,
	report *service.ReportService) *Queue {
	return &Queue{
		cfg:     cfg,
		posts:   posts,
		ig:      ig,
		runs:    runs,
		history: history,
		report:  report,
	}
}

const TaskTypeVerifyStories = "verify:stories"

type VerifyStoriesPayload struct {
	TriggeredBy string `json:"triggered_by"`
}
