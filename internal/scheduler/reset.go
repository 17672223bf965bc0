package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/vogiaan1904/trafficroom/internal/service"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

type Resetter interface {
	ResetAll(ctx context.Context) ([]int64, error)
}

// ResetJob clears the ranking on a cron schedule and tells every known user.
type ResetJob struct {
	cron     *cron.Cron
	ranking  Resetter
	notifier service.Notifier
	message  string
	l        logger.Logger
}

func NewResetJob(schedule string, ranking Resetter, notifier service.Notifier, message string, l logger.Logger) (*ResetJob, error) {
	j := &ResetJob{
		cron:     cron.New(),
		ranking:  ranking,
		notifier: notifier,
		message:  message,
		l:        l,
	}

	if _, err := j.cron.AddFunc(schedule, func() {
		if err := j.Run(context.Background()); err != nil {
			j.l.Errorf(context.Background(), "scheduler.ResetJob: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid reset schedule %q: %w", schedule, err)
	}

	return j, nil
}

func (j *ResetJob) Start() {
	j.cron.Start()
}

// Stop waits for a running reset to finish or ctx to end.
func (j *ResetJob) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (j *ResetJob) Run(ctx context.Context) error {
	ids, err := j.ranking.ResetAll(ctx)
	if err != nil {
		return err
	}

	if err := j.notifier.RankingReset(ctx, ids, j.message); err != nil {
		// the reset itself stands
		j.l.Warnf(ctx, "scheduler.ResetJob.Run: notify: %v", err)
	}

	j.l.Infof(ctx, "Daily ranking reset done, notified %d users", len(ids))

	return nil
}
