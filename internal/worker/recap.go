package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/huddle-live/backend/internal/attendance"
	"github.com/huddle-live/backend/internal/models"
	"github.com/huddle-live/backend/internal/recaps"
	"github.com/huddle-live/backend/pkg/queue"
	"github.com/huddle-live/backend/pkg/storage"
)

// RecapProcessor consumes recap jobs: build the recap from the transcript
// tail and attendance log, persist it, and archive the transcript to S3 when
// configured.
type RecapProcessor struct {
	recapRepo  *recaps.Repository
	attendance *attendance.Repository
	summarizer Summarizer
	s3         *storage.S3
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewRecapProcessor creates a recap job processor. s3 may be nil.
func NewRecapProcessor(recapRepo *recaps.Repository, att *attendance.Repository, summarizer Summarizer, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *RecapProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if summarizer == nil {
		summarizer = &ExtractiveSummarizer{}
	}
	return &RecapProcessor{
		recapRepo:  recapRepo,
		attendance: att,
		summarizer: summarizer,
		s3:         s3,
		queue:      q,
		logger:     logger,
	}
}

// Process executes one recap job.
func (p *RecapProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecap {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecapPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	participants, err := p.attendance.ParticipantNames(ctx, payload.MeetingID)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}

	summary, actionItems, err := p.summarizer.Summarize(ctx, payload.Title, payload.Transcript)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	rec := &models.Recap{
		MeetingID:    payload.MeetingID,
		Title:        payload.Title,
		Participants: participants,
		Summary:      summary,
		ActionItems:  actionItems,
		Transcript:   payload.Transcript,
	}
	if err := p.recapRepo.Create(ctx, rec); err != nil {
		return fmt.Errorf("persist recap: %w", err)
	}

	if p.s3 != nil && len(payload.Transcript) > 0 {
		body, err := json.Marshal(payload.Transcript)
		if err == nil {
			key, err := p.s3.UploadTranscriptArchive(ctx, payload.MeetingID, body)
			if err != nil {
				// Archive failure is non-fatal; the recap row already exists.
				p.logger.Warn("archive transcript", zap.Error(err), zap.String("meeting_id", payload.MeetingID.String()))
			} else if err := p.recapRepo.SetArchiveKey(ctx, rec.ID, key); err != nil {
				p.logger.Warn("set archive key", zap.Error(err), zap.String("recap_id", rec.ID.String()))
			}
		}
	}

	p.logger.Info("recap generated",
		zap.String("meeting_id", payload.MeetingID.String()),
		zap.String("recap_id", rec.ID.String()),
		zap.Int("segments", len(payload.Transcript)))
	return nil
}

// Run loops on the queue until ctx is cancelled.
func (p *RecapProcessor) Run(ctx context.Context) {
	p.logger.Info("recap worker running")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("recap worker stopped")
			return
		default:
		}
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("process recap job", zap.Error(err), zap.String("job_id", job.ID))
			time.Sleep(queue.RetryBackoff)
			_ = p.queue.Retry(ctx, job)
		}
	}
}
