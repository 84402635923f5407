package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/storysync/configs"
	"github.com/maheshrc27/storysync/internal/models"
)

// ReportService archives per-run verification reports to Cloudflare
// R2 so operators can inspect past runs without querying the
// database. Archival is best effort and optional.
type ReportService struct {
	config cfg.Config
}

func NewReportService(cfg cfg.Config) *ReportService {
	return &ReportService{config: cfg}
}

func (r *ReportService) Enabled() bool {
	return r.config.R2.BucketName != ""
}

func (r *ReportService) r2Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.R2.AccountID))
	}), nil
}

// ArchiveRun uploads the run summary as JSON, keyed by day and run id.
func (r *ReportService) ArchiveRun(ctx context.Context, run *models.VerificationRun) error {
	if !r.Enabled() {
		return nil
	}

	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("error marshalling run report: %w", err)
	}

	key := fmt.Sprintf("verification-reports/%s/%s.json", run.StartedAt.Format("2006-01-02"), run.ID)

	client, err := r.r2Client(ctx)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}

	_, err = client.PutObject(ctx, input)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
