package dto

// Telemetry event payloads. Field names match the client wire contract:
// the emitter may deliver these as regular JSON bodies or as send-on-unload
// beacon payloads (text/plain or octet-stream carrying a JSON string); the
// ingestion handlers normalize both forms into these structs.

// PageViewEvent is emitted on every page transition and carries the
// previous page's elapsed time. The first event of a session carries a zero
// duration (entry marker).
type PageViewEvent struct {
	ShareID     string `json:"shareId" validate:"required,max=64"`
	SessionID   string `json:"sessionId" validate:"required,uuid"`
	Page        int    `json:"page" validate:"required,min=1"`
	TotalPages  int    `json:"totalPages" validate:"required,min=1"`
	DurationMS  int64  `json:"duration" validate:"min=0"`
	ScrollDepth *int   `json:"scrollDepth,omitempty" validate:"omitempty,min=0,max=100"`
}

// SessionEndEvent is emitted once on session termination. Duplicate or late
// deliveries are accepted quietly; the last write wins on duration.
type SessionEndEvent struct {
	ShareID         string `json:"shareId" validate:"required,max=64"`
	SessionID       string `json:"sessionId" validate:"required,uuid"`
	DurationSeconds int64  `json:"durationSeconds" validate:"min=0"`
	PagesViewed     int    `json:"pagesViewed" validate:"min=0"`
	TotalPages      int    `json:"totalPages" validate:"min=0"`
	MaxPageReached  int    `json:"maxPageReached" validate:"min=0"`
}

// SessionActivityEvent is the low-frequency heartbeat that keeps a session
// marked active. It never carries a duration.
type SessionActivityEvent struct {
	SessionID   string `json:"sessionId" validate:"required,uuid"`
	CurrentPage *int   `json:"currentPage,omitempty" validate:"omitempty,min=1"`
}

// TelemetryAck is the minimal acknowledgement returned to the emitter
type TelemetryAck struct {
	Recorded bool `json:"recorded"`
}
