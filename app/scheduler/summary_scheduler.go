package scheduler

import (
	"context"
	"log"
	"time"

	businessflow "github.com/docpulse/docpulse/business_flow"
	"github.com/docpulse/docpulse/utils"
)

// SummaryScheduler recomputes daily summaries on an interval. Each pass
// covers today and yesterday so sessions straddling midnight are not lost,
// and the upsert keyed on (document, day) makes reruns harmless.
type SummaryScheduler struct {
	summaryFlow businessflow.SummaryFlow
	clock       Clock
	logger      *log.Logger
	interval    time.Duration

	// rebaselineEvery counts passes between full global recomputes; the
	// incremental counters drift only on partial failures, so a daily
	// rebaseline is plenty
	rebaselineEvery int
	passCount       int
}

func NewSummaryScheduler(
	summaryFlow businessflow.SummaryFlow,
	clock Clock,
	logger *log.Logger,
	interval time.Duration,
	rebaselineEvery int,
) *SummaryScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if rebaselineEvery <= 0 {
		rebaselineEvery = 24
	}

	return &SummaryScheduler{
		summaryFlow:     summaryFlow,
		clock:           clock,
		logger:          logger,
		interval:        interval,
		rebaselineEvery: rebaselineEvery,
	}
}

// Start launches the summary loop in a background goroutine and returns a stop function
func (s *SummaryScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return cancel
}

// RunOnce regenerates summaries for today and yesterday, and periodically
// rebaselines the global counters from raw rows
func (s *SummaryScheduler) RunOnce(ctx context.Context) {
	now := s.clock.Now()

	for _, day := range []time.Time{now, now.AddDate(0, 0, -1)} {
		docs, err := s.summaryFlow.GenerateDailySummaries(ctx, day, nil)
		if err != nil {
			s.logger.Printf("summaries: generate for %s failed: %v", utils.DateString(day), err)
			continue
		}
		if docs > 0 {
			s.logger.Printf("summaries: regenerated %d document summaries for %s", docs, utils.DateString(day))
		}
	}

	s.passCount++
	if s.passCount%s.rebaselineEvery == 0 {
		if err := s.summaryFlow.RebaselineGlobal(ctx); err != nil {
			s.logger.Printf("summaries: global rebaseline failed: %v", err)
		} else {
			s.logger.Printf("summaries: global counters rebaselined from raw rows")
		}
	}
}
