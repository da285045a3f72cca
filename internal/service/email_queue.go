package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrEmailQueueFull   = errors.New("email queue full")
	ErrEmailQueueClosed = errors.New("email queue closed")
)

type emailJob struct {
	recipient   string
	templateKey string
	data        map[string]any
}

// EmailQueue is a bounded worker pool in front of an EmailSender. Sends are
// fire and forget: failures are logged and never reach the caller.
type EmailQueue struct {
	sender      EmailSender
	logger      logrus.FieldLogger
	jobs        chan emailJob
	sendTimeout time.Duration

	// Metrics, when set, counts accepted jobs.
	Metrics interface{ RecordEmailQueued() }

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewEmailQueue(sender EmailSender, logger logrus.FieldLogger, workers int, buffer int) *EmailQueue {
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	q := &EmailQueue{
		sender:      sender,
		logger:      logger,
		jobs:        make(chan emailJob, buffer),
		sendTimeout: 15 * time.Second,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	return q
}

// SendTemplatedEmail enqueues the email and returns immediately.
func (q *EmailQueue) SendTemplatedEmail(_ context.Context, recipient string, templateKey string, data map[string]any) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrEmailQueueClosed
	}
	select {
	case q.jobs <- emailJob{recipient: recipient, templateKey: templateKey, data: data}:
		if q.Metrics != nil {
			q.Metrics.RecordEmailQueued()
		}
		return nil
	default:
		return ErrEmailQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to drain or for ctx
// to expire.
func (q *EmailQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *EmailQueue) run() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.deliver(job)
	}
}

func (q *EmailQueue) deliver(job emailJob) {
	ctx, cancel := context.WithTimeout(context.Background(), q.sendTimeout)
	defer cancel()
	if err := q.sender.SendTemplatedEmail(ctx, job.recipient, job.templateKey, job.data); err != nil {
		q.logger.WithError(err).WithFields(logrus.Fields{
			"to":       job.recipient,
			"template": job.templateKey,
		}).Error("email delivery failed")
	}
}
