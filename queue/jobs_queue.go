package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeSendPaymentEvent JobType = "send_payment_event"
	JobTypeReconcilePayment JobType = "reconcile_payment"
)

const MaxRetries = 5

var ErrJobNotFound = errors.New("job not found in failed queue")

type Job struct {
	ID         string                 `json:"id"`
	Type       JobType                `json:"type"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"created_at"`
	RetryCount int                    `json:"retry_count"`
}

type Queue struct {
	client     *redis.Client
	queueName  string
	processing string
	failed     string
	delayed    string
	now        func() time.Time
}

func NewQueue(redisURL, queueName string) (*Queue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewQueueWithClient(client, queueName), nil
}

// NewQueueWithClient builds a queue on an existing connection.
func NewQueueWithClient(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:     client,
		queueName:  queueName,
		processing: queueName + ":processing",
		failed:     queueName + ":failed",
		delayed:    queueName + ":delayed",
		now:        time.Now,
	}
}

func (q *Queue) newJob(jobType JobType, data map[string]interface{}) Job {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Data:      data,
		CreatedAt: q.now().UTC(),
	}
}

func (q *Queue) Enqueue(ctx context.Context, jobType JobType, data map[string]interface{}) error {
	job := q.newJob(jobType, data)

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to push job to queue: %w", err)
	}

	log.Printf("Enqueued job %s of type %s", job.ID, job.Type)
	return nil
}

// EnqueueDelayed schedules a job to become visible after delay.
func (q *Queue) EnqueueDelayed(ctx context.Context, jobType JobType, data map[string]interface{}, delay time.Duration) error {
	job := q.newJob(jobType, data)

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	executeAt := q.now().Add(delay)
	err = q.client.ZAdd(ctx, q.delayed, &redis.Z{
		Score:  float64(executeAt.Unix()),
		Member: jobJSON,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to push delayed job to queue: %w", err)
	}

	log.Printf("Enqueued delayed job %s of type %s to execute at %s",
		job.ID, job.Type, executeAt.Format("2006-01-02 15:04:05"))
	return nil
}

// Dequeue blocks up to timeout for a job and parks it in the processing
// list. It returns nil, nil when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected BLPOP result format")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	if err := q.client.RPush(ctx, q.processing, result[1]).Err(); err != nil {
		log.Printf("Warning: Failed to move job %s to processing queue: %v", job.ID, err)
	}

	return &job, nil
}

func (q *Queue) CompleteJob(ctx context.Context, job *Job) error {
	if err := q.removeProcessing(ctx, job); err != nil {
		return err
	}
	log.Printf("Completed job %s of type %s", job.ID, job.Type)
	return nil
}

// removeProcessing drops the processing entry for job. Entries are matched
// by id since the job may have been re-encoded since it was dequeued.
func (q *Queue) removeProcessing(ctx context.Context, job *Job) error {
	entries, err := q.client.LRange(ctx, q.processing, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list processing queue: %w", err)
	}
	for _, entry := range entries {
		var parked Job
		if err := json.Unmarshal([]byte(entry), &parked); err != nil || parked.ID != job.ID {
			continue
		}
		if err := q.client.LRem(ctx, q.processing, 1, entry).Err(); err != nil {
			return fmt.Errorf("failed to remove job from processing queue: %w", err)
		}
		return nil
	}
	return nil
}

// FailJob schedules the job again with exponential backoff, or moves it to
// the failed list once MaxRetries is exceeded.
func (q *Queue) FailJob(ctx context.Context, job *Job, jobErr error) error {
	if err := q.removeProcessing(ctx, job); err != nil {
		log.Printf("Warning: Failed to remove job %s from processing queue: %v", job.ID, err)
	}

	job.RetryCount++
	job.Data["last_error"] = jobErr.Error()
	job.Data["failed_at"] = q.now().UTC()

	if job.RetryCount <= MaxRetries {
		delay := backoff(job.RetryCount)
		retryAt := q.now().Add(delay)
		job.Data["next_retry_at"] = retryAt.UTC()
		job.Data["is_last_attempt"] = job.RetryCount == MaxRetries

		jobJSON, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		if err := q.client.ZAdd(ctx, q.delayed, &redis.Z{
			Score:  float64(retryAt.Unix()),
			Member: jobJSON,
		}).Err(); err != nil {
			log.Printf("Warning: Failed to add job to delayed queue, adding to failed queue: %v", err)
			if err := q.client.RPush(ctx, q.failed, jobJSON).Err(); err != nil {
				return fmt.Errorf("failed to push job to failed queue: %w", err)
			}
		}

		log.Printf("Job %s of type %s scheduled for retry %d/%d in %s",
			job.ID, job.Type, job.RetryCount, MaxRetries, delay)
		return nil
	}

	job.Data["all_retries_exhausted"] = true
	job.Data["final_failure_at"] = q.now().UTC()
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.RPush(ctx, q.failed, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to push job to failed queue: %w", err)
	}

	log.Printf("Job %s of type %s moved to failed queue after %d retries", job.ID, job.Type, job.RetryCount)
	return nil
}

func backoff(retry int) time.Duration {
	return time.Duration(15*(1<<(retry-1))) * time.Second
}

// ProcessDelayedJobs moves every due delayed job to the main queue.
func (q *Queue) ProcessDelayedJobs(ctx context.Context) error {
	now := q.now().Unix()

	jobs, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed jobs: %w", err)
	}

	for _, jobJSON := range jobs {
		removed, err := q.client.ZRem(ctx, q.delayed, jobJSON).Result()
		if err != nil {
			log.Printf("Warning: Failed to remove job from delayed queue: %v", err)
			continue
		}
		// Another pump already moved it.
		if removed == 0 {
			continue
		}

		if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
			log.Printf("Warning: Failed to move delayed job to main queue: %v", err)
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
			log.Printf("Warning: Failed to unmarshal job: %v", err)
			continue
		}
		log.Printf("Moved delayed job %s of type %s to main queue (retry %d)", job.ID, job.Type, job.RetryCount)
	}

	return nil
}

// RetryJob requeues a job from the failed list with its retry count reset.
func (q *Queue) RetryJob(ctx context.Context, jobID string) error {
	jobs, err := q.client.LRange(ctx, q.failed, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list failed jobs: %w", err)
	}

	for _, jobJSON := range jobs {
		var job Job
		if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
			log.Printf("Warning: Failed to unmarshal job: %v", err)
			continue
		}
		if job.ID != jobID {
			continue
		}

		if err := q.client.LRem(ctx, q.failed, 1, jobJSON).Err(); err != nil {
			return fmt.Errorf("failed to remove job from failed queue: %w", err)
		}

		job.RetryCount = 0
		job.Data["manual_retry"] = true
		job.Data["manual_retry_at"] = q.now().UTC()
		delete(job.Data, "all_retries_exhausted")
		delete(job.Data, "final_failure_at")
		delete(job.Data, "is_last_attempt")

		updated, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		if err := q.client.RPush(ctx, q.queueName, updated).Err(); err != nil {
			return fmt.Errorf("failed to push job to main queue: %w", err)
		}

		log.Printf("Manually requeued job %s of type %s (retry count reset)", job.ID, job.Type)
		return nil
	}

	return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
}

// IsLastAttempt reports whether a failure of job would exhaust its retries.
func (q *Queue) IsLastAttempt(job *Job) bool {
	if isLast, exists := job.Data["is_last_attempt"]; exists {
		if lastAttempt, ok := isLast.(bool); ok {
			return lastAttempt
		}
	}
	return job.RetryCount >= MaxRetries
}

// Lengths reports the size of the main, processing, delayed and failed lists.
func (q *Queue) Lengths(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, 4)
	for name, key := range map[string]string{"queued": q.queueName, "processing": q.processing, "failed": q.failed} {
		n, err := q.client.LLen(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s length: %w", name, err)
		}
		out[name] = n
	}
	n, err := q.client.ZCard(ctx, q.delayed).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read delayed length: %w", err)
	}
	out["delayed"] = n
	return out, nil
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Close() error {
	return q.client.Close()
}
