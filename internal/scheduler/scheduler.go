package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/metrics"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QueueSource is the slice of the queue repository the workers need
type QueueSource interface {
	ClaimNextDue(ctx context.Context, now time.Time) (*domain.QueuedNotification, error)
	MarkCompleted(ctx context.Context, id primitive.ObjectID) error
	ReleaseWithError(ctx context.Context, queued *domain.QueuedNotification, errMsg string) error
	ReleaseStuck(ctx context.Context, lease time.Duration) (int64, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountPending(ctx context.Context) (int64, error)
}

// Dispatcher re-drives a stored notification through channel delivery
type Dispatcher interface {
	DispatchQueued(ctx context.Context, notificationID string) (*domain.Notification, error)
}

// NotificationExpirer flips notifications whose expiry has passed
type NotificationExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// Config tunes the worker pool and the maintenance jobs
type Config struct {
	Workers         int
	PollInterval    time.Duration
	BatchSize       int
	ProcessingLease time.Duration
	Retention       time.Duration
}

// Scheduler polls the queue for due notifications with a small worker pool
// and runs periodic maintenance: releasing stuck claims, expiring
// notifications, and trimming finished queue rows past retention
type Scheduler struct {
	queue      QueueSource
	dispatcher Dispatcher
	expirer    NotificationExpirer
	cfg        Config
	log        *logger.Logger

	cron *cron.Cron
	stop chan struct{}
	wg   sync.WaitGroup
	now  func() time.Time
}

// NewScheduler creates a scheduler over the given queue and dispatcher
func NewScheduler(queue QueueSource, dispatcher Dispatcher, expirer NotificationExpirer, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.ProcessingLease <= 0 {
		cfg.ProcessingLease = 5 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return &Scheduler{
		queue:      queue,
		dispatcher: dispatcher,
		expirer:    expirer,
		cfg:        cfg,
		log:        log,
		cron:       cron.New(),
		stop:       make(chan struct{}),
		now:        time.Now,
	}
}

// Start launches the worker pool and the maintenance cron jobs
func (s *Scheduler) Start() error {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	if _, err := s.cron.AddFunc("@every 1m", s.releaseStuck); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1m", s.expireDue); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 3 * * *", s.cleanup); err != nil {
		return err
	}
	s.cron.Start()

	s.log.Info("Scheduler started",
		"workers", s.cfg.Workers,
		"poll_interval", s.cfg.PollInterval,
		"batch_size", s.cfg.BatchSize)
	return nil
}

// Stop halts polling and waits for in-flight work to finish
func (s *Scheduler) Stop() {
	close(s.stop)
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.drainDue()
		}
	}
}

// drainDue claims and processes due rows one at a time, up to the batch
// size. Claiming is the mutual-exclusion point, so concurrent workers
// never process the same row.
func (s *Scheduler) drainDue() {
	for i := 0; i < s.cfg.BatchSize; i++ {
		select {
		case <-s.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProcessingLease)
		queued, err := s.queue.ClaimNextDue(ctx, s.now())
		if err != nil {
			cancel()
			s.log.Error("Failed to claim due notification", "error", err)
			return
		}
		if queued == nil {
			cancel()
			break
		}

		s.process(ctx, queued)
		cancel()
	}

	if depth, err := s.queue.CountPending(context.Background()); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
}

func (s *Scheduler) process(ctx context.Context, queued *domain.QueuedNotification) {
	// Any terminal notification outcome completes the row, failed included:
	// the queue's job is to have attempted delivery, not to guarantee it.
	// The outer retry budget is reserved for processing errors.
	if _, err := s.dispatcher.DispatchQueued(ctx, queued.NotificationID.Hex()); err != nil {
		s.fail(ctx, queued, err.Error())
		return
	}

	if err := s.queue.MarkCompleted(ctx, queued.ID); err != nil {
		s.log.Error("Failed to mark queue row completed", "id", queued.ID.Hex(), "error", err)
	}
}

func (s *Scheduler) fail(ctx context.Context, queued *domain.QueuedNotification, msg string) {
	if err := s.queue.ReleaseWithError(ctx, queued, msg); err != nil {
		s.log.Error("Failed to release queue row", "id", queued.ID.Hex(), "error", err)
		return
	}
	if queued.Attempts+1 >= queued.MaxAttempts {
		metrics.QueueExhaustedTotal.Inc()
		s.log.Warn("Queue row exhausted its attempts",
			"id", queued.ID.Hex(),
			"notification_id", queued.NotificationID.Hex(),
			"error", msg)
	}
}

func (s *Scheduler) releaseStuck() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	released, err := s.queue.ReleaseStuck(ctx, s.cfg.ProcessingLease)
	if err != nil {
		s.log.Error("Failed to release stuck queue rows", "error", err)
		return
	}
	if released > 0 {
		s.log.Warn("Released stuck queue rows", "count", released)
	}
}

func (s *Scheduler) expireDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.expirer.ExpireDue(ctx, s.now())
	if err != nil {
		s.log.Error("Failed to expire notifications", "error", err)
		return
	}
	if expired > 0 {
		s.log.Info("Expired notifications past their deadline", "count", expired)
	}
}

func (s *Scheduler) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := s.now().Add(-s.cfg.Retention)
	deleted, err := s.queue.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("Queue retention cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		s.log.Info("Deleted finished queue rows past retention", "count", deleted, "cutoff", cutoff)
	}
}
