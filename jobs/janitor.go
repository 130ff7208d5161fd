package jobs

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepSchedule 清理过期任务的周期。
const DefaultSweepSchedule = "@every 10m"

// Janitor periodically drops finished jobs older than ttl.
type Janitor struct {
	store  *Store
	ttl    time.Duration
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time
}

func NewJanitor(store *Store, ttl time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		store:  store,
		ttl:    ttl,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules Sweep on schedule (DefaultSweepSchedule when empty).
func (j *Janitor) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep() }); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("job janitor started", zap.String("schedule", schedule), zap.Duration("ttl", j.ttl))
	return nil
}

// Sweep purges expired jobs now.
func (j *Janitor) Sweep() int {
	n := j.store.Purge(j.now().Add(-j.ttl))
	if n > 0 {
		j.logger.Info("purged finished jobs", zap.Int("count", n), zap.Int("remaining", j.store.Len()))
	}
	return n
}

// Stop waits for a running sweep to return.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
