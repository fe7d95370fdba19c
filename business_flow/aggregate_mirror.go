package businessflow

import (
	"context"
	"log"
	"strconv"

	"github.com/docpulse/docpulse/models"
	"github.com/redis/go-redis/v9"
)

// Redis hash fields of the mirrored global aggregate
const (
	globalStatsKey = "global_stats"

	fieldTotalViews      = "total_views"
	fieldUniqueViews     = "unique_views"
	fieldTotalDurationMS = "total_duration_ms"
	fieldTotalPageViews  = "total_page_views"
	fieldEmailCaptures   = "email_captures"
)

// AggregateMirror keeps a copy of the global counters in a Redis hash so the
// hot stats read can skip Postgres. Every write is best effort: the database
// row is authoritative and the mirror is rewritten wholesale on each
// rebaseline, so a dropped increment only skews reads until the next sweep.
type AggregateMirror struct {
	rc     *redis.Client
	prefix string
}

// NewAggregateMirror wires the mirror; a nil client disables it
func NewAggregateMirror(rc *redis.Client, prefix string) *AggregateMirror {
	return &AggregateMirror{rc: rc, prefix: prefix}
}

func (m *AggregateMirror) key() string {
	if m.prefix == "" {
		return globalStatsKey
	}
	return m.prefix + ":" + globalStatsKey
}

func (m *AggregateMirror) enabled() bool {
	return m != nil && m.rc != nil
}

// MirrorSessionStart bumps the view counters after a session opens
func (m *AggregateMirror) MirrorSessionStart(ctx context.Context, unique bool, emailCaptured bool) {
	if !m.enabled() {
		return
	}
	pipe := m.rc.Pipeline()
	pipe.HIncrBy(ctx, m.key(), fieldTotalViews, 1)
	if unique {
		pipe.HIncrBy(ctx, m.key(), fieldUniqueViews, 1)
	}
	if emailCaptured {
		pipe.HIncrBy(ctx, m.key(), fieldEmailCaptures, 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("aggregate mirror session-start failed: %v", err)
	}
}

// MirrorSessionEnd accumulates a session's final duration delta
func (m *AggregateMirror) MirrorSessionEnd(ctx context.Context, durationDeltaMS int64) {
	if !m.enabled() || durationDeltaMS == 0 {
		return
	}
	if err := m.rc.HIncrBy(ctx, m.key(), fieldTotalDurationMS, durationDeltaMS).Err(); err != nil {
		log.Printf("aggregate mirror session-end failed: %v", err)
	}
}

// MirrorPageView bumps the page view counter
func (m *AggregateMirror) MirrorPageView(ctx context.Context) {
	if !m.enabled() {
		return
	}
	if err := m.rc.HIncrBy(ctx, m.key(), fieldTotalPageViews, 1).Err(); err != nil {
		log.Printf("aggregate mirror page-view failed: %v", err)
	}
}

// Rewrite overwrites the whole hash from the authoritative database row
func (m *AggregateMirror) Rewrite(ctx context.Context, agg *models.GlobalAggregate) {
	if !m.enabled() || agg == nil {
		return
	}
	err := m.rc.HSet(ctx, m.key(), map[string]any{
		fieldTotalViews:      agg.TotalViews,
		fieldUniqueViews:     agg.UniqueViews,
		fieldTotalDurationMS: agg.TotalDurationMS,
		fieldTotalPageViews:  agg.TotalPageViews,
		fieldEmailCaptures:   agg.EmailCaptures,
	}).Err()
	if err != nil {
		log.Printf("aggregate mirror rewrite failed: %v", err)
	}
}

// Read returns the mirrored counters, or nil when the mirror is cold or
// unreachable and the caller must fall back to the database
func (m *AggregateMirror) Read(ctx context.Context) *models.GlobalAggregate {
	if !m.enabled() {
		return nil
	}
	vals, err := m.rc.HGetAll(ctx, m.key()).Result()
	if err != nil || len(vals) == 0 {
		return nil
	}

	agg := &models.GlobalAggregate{
		TotalViews:      parseCounter(vals[fieldTotalViews]),
		UniqueViews:     parseCounter(vals[fieldUniqueViews]),
		TotalDurationMS: parseCounter(vals[fieldTotalDurationMS]),
		TotalPageViews:  parseCounter(vals[fieldTotalPageViews]),
		EmailCaptures:   parseCounter(vals[fieldEmailCaptures]),
	}
	if agg.TotalViews > 0 {
		agg.AvgDurationMS = agg.TotalDurationMS / agg.TotalViews
	}
	return agg
}

func parseCounter(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
