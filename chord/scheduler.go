package chord

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler drives the periodic stabilize/fix_fingers/check_predecessor
// ticks from spec §4.3/§5 using github.com/robfig/cron/v3, grounded on
// _examples/other_examples/manifests/nishisan-dev-n-backup, which schedules
// its own recurring backup runs the same way instead of a hand-rolled
// time.Ticker loop.
type Scheduler struct {
	ring *Ring
	cron *cron.Cron
	log  *zap.SugaredLogger
}

// NewScheduler wires the ring's maintenance operations to a cron instance
// ticking every stabilizeMs milliseconds.
func NewScheduler(ring *Ring, stabilizeMs int, log *zap.SugaredLogger) *Scheduler {
	c := cron.New()
	s := &Scheduler{ring: ring, cron: c, log: log}

	spec := fmt.Sprintf("@every %dms", stabilizeMs)

	c.AddFunc(spec, func() {
		if err := ring.Stabilize(); err != nil {
			log.Debugw("stabilize failed", "err", err)
		}
	})
	c.AddFunc(spec, func() {
		if err := ring.FixFingers(); err != nil {
			log.Debugw("fix_fingers failed", "err", err)
		}
	})
	c.AddFunc(spec, func() {
		ring.CheckPredecessor()
	})

	return s
}

// Start begins running the scheduled ticks in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for any running tick to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
