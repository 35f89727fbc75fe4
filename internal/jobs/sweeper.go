package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"renderowl-intel-api/internal/llm"
)

// Sweeper periodically sweeps the LLM prompt cache's recency set for
// entries whose TTL has already expired in Redis (spec §5, SPEC_FULL
// §10.5), loosely grounded on the teacher's
// internal/scheduler.Scheduler.ProcessJobs ticker loop, generalized from
// a raw time.Ticker into a robfig/cron schedule so its interval reads
// like a crontab rather than a magic duration constant.
type Sweeper struct {
	cache *llm.PromptCache
	cron  *cron.Cron
}

// NewSweeper creates a Sweeper that runs cache.Sweep on spec.
func NewSweeper(cache *llm.PromptCache, spec string) (*Sweeper, error) {
	c := cron.New()
	s := &Sweeper{cache: cache, cron: c}
	_, err := c.AddFunc(spec, s.run)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.cache.Sweep(ctx); err != nil {
		log.Printf("jobs: prompt cache sweep failed: %v", err)
	}
}

// Start begins the cron schedule in the background.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop waits for the running sweep (if any) to finish, then halts the
// schedule.
func (s *Sweeper) Stop() { <-s.cron.Stop().Done() }
