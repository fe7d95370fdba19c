package utils

import (
	"time"
)

// Data retention windows. These are advertised to end users as privacy
// guarantees, so changing them is an external contract change.
const (
	// SessionRetention is how long raw view sessions (and their page views) are kept
	SessionRetention = 30 * 24 * time.Hour

	// SummaryRetentionMonths is how many calendar months per-document daily
	// summaries are kept. Months, not a flat duration: 26*30 days would
	// shave up to ten days off the advertised window.
	SummaryRetentionMonths = 26

	// EmailCaptureRetention is how long captured viewer emails are kept (12 months)
	EmailCaptureRetention = 365 * 24 * time.Hour

	// OrphanDocumentRetention is how long ownerless uploaded documents are kept
	OrphanDocumentRetention = 90 * 24 * time.Hour
)

// Session liveness constants
const (
	// IdleThreshold is how long a session may go without a heartbeat before the reaper closes it
	IdleThreshold = 30 * time.Minute

	// ReaperInterval is how often the idle reaper wakes up
	ReaperInterval = 5 * time.Minute
)

// DocumentHandleTTL is the lifetime of the signed handle returned by the access gate
const DocumentHandleTTL = 10 * time.Minute

// CORSMaxAge is the preflight cache lifetime in seconds
const CORSMaxAge = 3600

// Context keys used to carry request-scoped values into business flows
type ContextKey string

const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
)
