package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

const (
	ContentQuizQueue = "queue:content-quiz"

	popTimeout = 5 * time.Second
	lockTTL    = 10 * time.Minute
)

// JobStore tracks job status in Postgres.
type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Complete(ctx context.Context, id uuid.UUID, resultID string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

// LearnerSource resolves the per-user engine graph a job runs against.
type LearnerSource interface {
	Get(ctx context.Context, userID string) (*services.Learner, error)
}

type Pool struct {
	redis       *redis.Client
	learners    LearnerSource
	fileExtract *services.FileExtractService
	jobs        JobStore
	publisher   services.Publisher
	workerCount int
	log         *logger.Logger

	// push re-queues a job payload; redis LPUSH outside tests.
	push    func(ctx context.Context, payload []byte) error
	backoff func(retry int) time.Duration
	wg      sync.WaitGroup
}

func NewPool(
	redisClient *redis.Client,
	learners LearnerSource,
	fileExtract *services.FileExtractService,
	jobs JobStore,
	publisher services.Publisher,
	workerCount int,
	log *logger.Logger,
) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		redis:       redisClient,
		learners:    learners,
		fileExtract: fileExtract,
		jobs:        jobs,
		publisher:   publisher,
		workerCount: workerCount,
		log:         logger.OrNop(log),
		backoff: func(retry int) time.Duration {
			return time.Duration(1<<uint(retry)) * time.Second
		},
	}
	p.push = func(ctx context.Context, payload []byte) error {
		return p.redis.LPush(ctx, ContentQuizQueue, payload).Err()
	}
	return p
}

// Enqueue hands a recorded job to the workers.
func (p *Pool) Enqueue(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	return p.push(ctx, payload)
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight job has finished.
func (p *Pool) Run(ctx context.Context) error {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.worker(ctx, id)
		}(i)
	}
	p.log.Info("started workers", "count", p.workerCount)

	<-ctx.Done()
	p.wg.Wait()
	p.log.Info("workers stopped")
	return nil
}

func (p *Pool) worker(ctx context.Context, id int) {
	log := p.log.With("worker", id)
	for {
		if ctx.Err() != nil {
			return
		}

		result, err := p.redis.BLPop(ctx, popTimeout, ContentQuizQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Warn("failed to pop job", "error", err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error("failed to parse job", "error", err)
			continue
		}

		// Try to acquire lock
		lockKey := "job_lock:" + job.ID.String()
		locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		// Jobs run to completion even when shutdown starts mid-way.
		jobCtx := context.WithoutCancel(ctx)
		log.Info("processing job", "job_id", job.ID, "type", job.Type)
		p.handle(jobCtx, &job)

		p.redis.Del(jobCtx, lockKey)
	}
}

// handle runs one job and records its outcome.
func (p *Pool) handle(ctx context.Context, job *models.Job) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusProcessing); err != nil {
		p.log.Warn("failed to mark job processing", "job_id", job.ID, "error", err)
	}
	p.status(ctx, job, 1, "Reading your material")

	var (
		quiz *models.Quiz
		err  error
	)
	switch job.Type {
	case models.JobTypeContentQuiz:
		quiz, err = p.processContentQuiz(ctx, job)
	default:
		err = permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}

	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job, quiz)
}

func (p *Pool) processContentQuiz(ctx context.Context, job *models.Job) (*models.Quiz, error) {
	var cfg models.ContentQuizConfig
	if err := json.Unmarshal(job.ConfigJSON, &cfg); err != nil {
		return nil, permanent(fmt.Errorf("invalid job config: %w", err))
	}

	text, contentType, err := p.fileExtract.ExtractContent(cfg)
	if err != nil {
		// A file that cannot be read now will not be readable on retry.
		return nil, permanent(fmt.Errorf("failed to extract content: %w", err))
	}

	learner, err := p.learners.Get(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load learner: %w", err)
	}

	p.status(ctx, job, 2, "Generating questions")
	quiz, err := learner.Quizzes.GenerateFromContent(ctx, text, contentType, cfg.QuestionCount)
	if err != nil {
		if services.KindOf(err) == services.KindInvalidInput && !errors.Is(err, services.ErrInvalidGeneration) {
			err = permanent(err)
		}
		return nil, err
	}
	return quiz, nil
}

// removeUpload deletes the job's uploaded file once no further attempt will
// read it.
func (p *Pool) removeUpload(job *models.Job) {
	if job.Type != models.JobTypeContentQuiz {
		return
	}
	var cfg models.ContentQuizConfig
	if err := json.Unmarshal(job.ConfigJSON, &cfg); err != nil || cfg.FilePath == "" {
		return
	}
	if err := os.Remove(cfg.FilePath); err != nil && !os.IsNotExist(err) {
		p.log.Warn("failed to remove upload", "job_id", job.ID, "path", cfg.FilePath, "error", err)
	}
}

func (p *Pool) status(ctx context.Context, job *models.Job, step int, name string) {
	p.publisher.Publish(ctx, job.UserID, models.WSMessage{
		Type:    models.WSStatusUpdate,
		Payload: models.StatusUpdate{JobID: job.ID, Step: step, StepName: name},
	})
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, quiz *models.Quiz) {
	p.removeUpload(job)
	if err := p.jobs.Complete(ctx, job.ID, quiz.ID); err != nil {
		p.log.Error("failed to mark job completed", "job_id", job.ID, "error", err)
	}

	p.publisher.Publish(ctx, job.UserID, models.WSMessage{
		Type: models.WSJobCompleted,
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   quiz.ID,
			ResultType: "quiz",
		},
	})

	p.log.Info("job completed", "job_id", job.ID, "quiz_id", quiz.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < job.MaxRetries && !isPermanent(err) {
		p.log.Warn("job failed, retrying", "job_id", job.ID, "attempt", job.RetryCount, "error", errMsg)
		p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusPending)
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		// Re-queue after backoff
		jobBytes, _ := json.Marshal(job)
		time.AfterFunc(p.backoff(job.RetryCount), func() {
			if err := p.push(context.Background(), jobBytes); err != nil {
				p.log.Error("failed to re-queue job", "job_id", job.ID, "error", err)
			}
		})
		return
	}

	p.log.Error("job failed permanently", "job_id", job.ID, "attempts", job.RetryCount, "error", errMsg)
	p.removeUpload(job)
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed)
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

	code := "JOB_FAILED"
	var engineErr *services.EngineError
	if errors.As(err, &engineErr) {
		code = engineErr.Code
	}
	p.publisher.Publish(ctx, job.UserID, models.WSMessage{
		Type: models.WSJobFailed,
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    code,
			ErrorMessage: errMsg,
		},
	})
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// permanent marks err as not worth retrying.
func permanent(err error) error { return &permanentError{err: err} }

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
