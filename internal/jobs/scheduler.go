package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TaskBlacklistPurge asks the worker to delete expired blacklist entries.
const TaskBlacklistPurge = "blacklist.purge"

type StreamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Scheduler enqueues periodic maintenance tasks on the worker stream. Only
// the enqueue happens here; the work itself runs in cmd/worker.
type Scheduler struct {
	cron     *cron.Cron
	queue    StreamWriter
	stream   string
	schedule string
	log      zerolog.Logger
	now      func() time.Time
}

func NewScheduler(queue StreamWriter, stream, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		queue:    queue,
		stream:   stream,
		schedule: schedule,
		log:      log,
		now:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil || s.schedule == "" {
		s.log.Info().Msg("maintenance scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.enqueuePurge); err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Str("stream", s.stream).Msg("maintenance scheduler started")
	return nil
}

// Stop halts the cron loop and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueuePurge() {
	if err := s.Enqueue(context.Background(), TaskBlacklistPurge); err != nil {
		s.log.Error().Err(err).Msg("enqueue blacklist purge failed")
	}
}

func (s *Scheduler) Enqueue(ctx context.Context, taskType string) error {
	if s.queue == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"type":        taskType,
			"requestedAt": s.now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
