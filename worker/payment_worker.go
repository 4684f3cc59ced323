package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"storefront-payment-api/models"
	"storefront-payment-api/queue"
	"storefront-payment-api/services/email"
	"storefront-payment-api/services/order"
)

// Reconciler applies reconciliation events to orders.
type Reconciler interface {
	Reconcile(ctx context.Context, ev models.ReconciliationEvent) (*models.Order, error)
}

// Worker handles notification delivery and reconciliation in the background.
type Worker struct {
	queue       *queue.Queue
	notifier    order.Notifier
	reconciler  Reconciler
	pollTimeout time.Duration
	pumpEvery   time.Duration

	shutdown  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

func NewWorker(q *queue.Queue, notifier order.Notifier, reconciler Reconciler) *Worker {
	return &Worker{
		queue:       q,
		notifier:    notifier,
		reconciler:  reconciler,
		pollTimeout: 5 * time.Second,
		pumpEvery:   5 * time.Second,
		shutdown:    make(chan struct{}),
	}
}

// Start runs concurrency job goroutines plus the delayed-job pump.
func (w *Worker) Start(concurrency int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return
	}
	w.isRunning = true

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(i)
	}
	w.wg.Add(1)
	go w.pumpDelayed()

	log.Printf("Started %d worker goroutines", concurrency)
}

// Stop signals every goroutine and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	close(w.shutdown)
	w.mu.Unlock()

	log.Println("Stopping worker...")
	w.wg.Wait()
	log.Println("Worker stopped")
}

func (w *Worker) pumpDelayed() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pumpEvery)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.queue.ProcessDelayedJobs(ctx); err != nil {
				log.Printf("Error processing delayed jobs: %v", err)
			}
			cancel()
		}
	}
}

func (w *Worker) processJobs(workerID int) {
	defer w.wg.Done()
	log.Printf("Worker %d starting", workerID)

	for {
		select {
		case <-w.shutdown:
			log.Printf("Worker %d shutting down", workerID)
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.pollTimeout+5*time.Second)
		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		cancel()

		if err != nil {
			log.Printf("Worker %d: Error dequeuing job: %v", workerID, err)
			w.pause(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		log.Printf("Worker %d processing job %s of type %s", workerID, job.ID, job.Type)

		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		jobErr := w.processJob(ctx, job)
		cancel()

		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		if jobErr != nil {
			log.Printf("Worker %d: Error processing job %s: %v", workerID, job.ID, jobErr)
			if err := w.queue.FailJob(ctx, job, jobErr); err != nil {
				log.Printf("Worker %d: Error marking job %s as failed: %v", workerID, job.ID, err)
			}
		} else if err := w.queue.CompleteJob(ctx, job); err != nil {
			log.Printf("Worker %d: Error marking job %s as complete: %v", workerID, job.ID, err)
		}
		cancel()
	}
}

// pause sleeps unless the worker is stopping.
func (w *Worker) pause(d time.Duration) {
	select {
	case <-w.shutdown:
	case <-time.After(d):
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeSendPaymentEvent:
		return w.processPaymentEvent(ctx, job)
	case queue.JobTypeReconcilePayment:
		return w.processReconciliation(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *Worker) processPaymentEvent(ctx context.Context, job *queue.Job) error {
	ev, err := email.DecodeEvent(job)
	if err != nil {
		return err
	}
	if w.queue.IsLastAttempt(job) {
		log.Printf("[Order: %s] Last attempt to deliver %s email", ev.OrderReference, ev.Event)
	}
	return w.notifier.Notify(ctx, ev)
}

// processReconciliation treats stale events as done: replaying them could
// never succeed.
func (w *Worker) processReconciliation(ctx context.Context, job *queue.Job) error {
	var ev models.ReconciliationEvent
	if err := queue.DecodePayload(job, &ev); err != nil {
		return err
	}

	_, err := w.reconciler.Reconcile(ctx, ev)
	if errors.Is(err, order.ErrStaleReconciliation) {
		log.Printf("[Order: %s] Reconciliation job %s was stale: %v", ev.OrderID, job.ID, err)
		return nil
	}
	return err
}
