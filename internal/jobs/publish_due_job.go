package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/HScode1/Tweeter-automation-sub000/internal/service"
)

// PublishDueJob runs the scheduling sweep from the in-process cron. The
// same sweep is reachable over HTTP for external cron providers.
type PublishDueJob struct {
	sweep service.SweepService
}

func NewPublishDueJob(sweep service.SweepService) *PublishDueJob {
	return &PublishDueJob{sweep: sweep}
}

func (c *PublishDueJob) PublishDue() {
	ctx := context.Background()

	summary, err := c.sweep.RunSweep(ctx, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return
	}

	if summary.Processed > 0 {
		slog.Info("publish sweep finished", slog.Int("processed", summary.Processed))
	}
}
