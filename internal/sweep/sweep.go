// Package sweep runs the periodic late-fee recomputation for overdue unpaid
// appointments.
package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"clinic-booking/internal/configs"
	"clinic-booking/internal/logging"
	"clinic-booking/internal/metrics"

	"github.com/go-co-op/gocron"
)

// FeeApplier recomputes and applies late fees, returning how many
// appointments were updated.
type FeeApplier interface {
	ApplyLateFees(ctx context.Context, now time.Time) (int, error)
}

// Start schedules the late-fee sweep at the configured interval and starts it
// asynchronously. The returned scheduler must be stopped on shutdown.
func Start(logger *log.Logger, config configs.Config, applier FeeApplier) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(config.Timezone())
	_, err := scheduler.Every(config.SweepIntervalMinutes()).Minutes().Do(func() {
		now := time.Now().In(config.Timezone())
		applied, err := applier.ApplyLateFees(context.Background(), now)
		if err != nil {
			logging.PrintlnError(logger, fmt.Sprint("late-fee sweep failed: ", err))
			return
		}
		metrics.CountSweepRun(applied)
		if applied > 0 {
			logging.PrintlnInfo(logger, fmt.Sprintf("late-fee sweep applied fees to %d appointments", applied))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("could not schedule the late-fee sweep: %w", err)
	}
	scheduler.StartAsync()
	return scheduler, nil
}
