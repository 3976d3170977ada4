// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartArenaScheduler wires the three recurring lifecycle jobs: activation of
// upcoming competitions, settlement of expired competitions and challenges,
// and expiry of unanswered challenge invites. Every job swallows its own
// failures; one bad entity never stops the tick.
func StartArenaScheduler(settlements *SettlementService, challenges *ChallengeService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sched.Start()

	// Every minute: flip upcoming → active and settle whatever has ended
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			act := settlements.ActivateDueCompetitions()
			if act.Checked > 0 {
				log.Printf("[Scheduler] activation: checked=%d succeeded=%d failed=%d",
					act.Checked, act.Succeeded, len(act.Failed))
			}

			set := settlements.SettleDueCompetitions()
			if set.Checked > 0 {
				log.Printf("[Scheduler] competition settlement: checked=%d succeeded=%d failed=%d",
					set.Checked, set.Succeeded, len(set.Failed))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// Every minute: settle finished duels
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			sum := challenges.SettleDueChallenges()
			if sum.Checked > 0 {
				log.Printf("[Scheduler] challenge settlement: checked=%d succeeded=%d failed=%d",
					sum.Checked, sum.Succeeded, len(sum.Failed))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// Every 5 minutes: expire unanswered invites
	_, err = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			sum := challenges.ExpirePendingChallenges()
			if sum.Checked > 0 {
				log.Printf("[Scheduler] invite expiry: checked=%d succeeded=%d failed=%d",
					sum.Checked, sum.Succeeded, len(sum.Failed))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	log.Println("✅ Arena scheduler started (activation, settlement, invite expiry)")
	return sched, nil
}
