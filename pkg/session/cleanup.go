package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxIdle is how long a session may stay untouched before the
	// cleanup job drops it.
	DefaultMaxIdle = 7 * 24 * time.Hour

	// DefaultSchedule runs the cleanup hourly.
	DefaultSchedule = "0 * * * *"
)

// Cleanup drops idle sessions on a cron schedule.
type Cleanup struct {
	manager  *Manager
	maxIdle  time.Duration
	schedule string
	cron     *cron.Cron
	entryID  cron.EntryID
	running  bool
}

// NewCleanup creates a cleanup job for the manager. Zero values fall back
// to the defaults.
func NewCleanup(manager *Manager, maxIdle time.Duration, schedule string) *Cleanup {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	return &Cleanup{
		manager:  manager,
		maxIdle:  maxIdle,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start schedules the cleanup job.
func (c *Cleanup) Start() error {
	if c.running {
		return fmt.Errorf("cleanup is already running")
	}

	entryID, err := c.cron.AddFunc(c.schedule, c.Run)
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", c.schedule, err)
	}

	c.entryID = entryID
	c.cron.Start()
	c.running = true

	log.Info().
		Str("schedule", c.schedule).
		Dur("max_idle", c.maxIdle).
		Msg("Session cleanup started")
	return nil
}

// Stop halts the schedule. Already-running jobs finish.
func (c *Cleanup) Stop() error {
	if !c.running {
		return fmt.Errorf("cleanup is not running")
	}

	c.cron.Remove(c.entryID)
	c.cron.Stop()
	c.running = false

	log.Info().Msg("Session cleanup stopped")
	return nil
}

// Run performs one cleanup pass immediately.
func (c *Cleanup) Run() {
	cutoff := time.Now().Add(-c.maxIdle)
	dropped := 0

	for _, id := range c.manager.idleSince(cutoff) {
		c.manager.Delete(id)
		dropped++
	}

	if dropped > 0 {
		log.Info().Int("dropped", dropped).Msg("Idle sessions cleaned up")
	}
}
