// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSchedulers wires the recurring jobs: the price-alert check every
// minute and the staking reward payout once a day. The platform scheduler
// does not overlap runs of the same job by default, which is what the alert
// checker's idempotent trigger assumes.
func StartSchedulers(alertService *AlertService, stakingService *StakingService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
			defer cancel()
			if err := alertService.CheckAlerts(ctx); err != nil {
				log.Printf("[Scheduler] Alert check failed: %v", err)
			}
		}),
	)

	_, _ = sched.NewJob(
		gocron.CronJob("0 0 * * *", false),
		gocron.NewTask(func() {
			if err := stakingService.PayoutAccruedRewards(); err != nil {
				log.Printf("[Scheduler] Staking payout failed: %v", err)
			}
		}),
	)
}
