package dto

// PageStatDTO is one entry of the per-page view breakdown
type PageStatDTO struct {
	PageNumber int   `json:"page_number"`
	Views      int64 `json:"views"`
}

// DocumentStatsResponse is the compact per-document stats read
type DocumentStatsResponse struct {
	DocumentUUID    string            `json:"document_uuid"`
	TotalPages      int               `json:"total_pages"`
	Views           int64             `json:"views"`
	UniqueViews     int64             `json:"unique_views"`
	TotalDurationMS int64             `json:"total_duration_ms"`
	AvgDurationMS   int64             `json:"avg_duration_ms"`
	EmailCaptures   int64             `json:"email_captures"`
	DistinctIPs     int64             `json:"distinct_ips"`
	TopPages        []PageStatDTO     `json:"top_pages"`
	Daily           []DailySummaryDTO `json:"daily,omitempty"`
}

// GlobalStatsResponse mirrors the platform-wide aggregate row
type GlobalStatsResponse struct {
	TotalViews      int64  `json:"total_views"`
	UniqueViews     int64  `json:"unique_views"`
	TotalDurationMS int64  `json:"total_duration_ms"`
	AvgDurationMS   int64  `json:"avg_duration_ms"`
	TotalPageViews  int64  `json:"total_page_views"`
	EmailCaptures   int64  `json:"email_captures"`
	UpdatedAt       string `json:"updated_at"`
}

// DailySummaryDTO is one pre-aggregated day of a document's traffic
type DailySummaryDTO struct {
	Date            string `json:"date"`
	TotalViews      int64  `json:"total_views"`
	UniqueViews     int64  `json:"unique_views"`
	TotalDurationMS int64  `json:"total_duration_ms"`
	AvgDurationMS   int64  `json:"avg_duration_ms"`
	EmailCaptures   int64  `json:"email_captures"`
}

// SessionListRequest carries pagination and filters for the session listing
type SessionListRequest struct {
	Page      int    `query:"page" validate:"omitempty,min=1"`
	PageSize  int    `query:"page_size" validate:"omitempty,min=1,max=100"`
	Email     string `query:"email" validate:"omitempty,email"`
	Device    string `query:"device" validate:"omitempty,max=32"`
	Country   string `query:"country" validate:"omitempty,len=2"`
	StartDate string `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// PageViewDTO is one page visit within a session detail
type PageViewDTO struct {
	PageNumber  int    `json:"page_number"`
	TotalPages  int    `json:"total_pages"`
	DurationMS  int64  `json:"duration_ms"`
	ScrollDepth *int   `json:"scroll_depth,omitempty"`
	ViewedAt    string `json:"viewed_at"`
}

// SessionDTO is the owner-facing view of one session
type SessionDTO struct {
	SessionID       string        `json:"session_id"`
	ViewerEmail     *string       `json:"viewer_email,omitempty"`
	ViewerName      *string       `json:"viewer_name,omitempty"`
	Country         *string       `json:"country,omitempty"`
	Device          string        `json:"device"`
	Browser         string        `json:"browser"`
	OS              string        `json:"os"`
	Referer         *string       `json:"referer,omitempty"`
	StartedAt       string        `json:"started_at"`
	LastActiveAt    string        `json:"last_active_at"`
	TotalDurationMS int64         `json:"total_duration_ms"`
	PagesViewed     int           `json:"pages_viewed"`
	MaxPageReached  int           `json:"max_page_reached"`
	IsUnique        bool          `json:"is_unique"`
	IsActive        bool          `json:"is_active"`
	PageViews       []PageViewDTO `json:"page_views,omitempty"`
}

// SessionListResponse is the paginated session listing
type SessionListResponse struct {
	Sessions []SessionDTO `json:"sessions"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// GenerateSummaryRequest asks for a recomputation of daily summaries
type GenerateSummaryRequest struct {
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
	DocumentID *string `json:"document_id,omitempty" validate:"omitempty,uuid"`
}

// GenerateSummaryResponse reports what a recomputation touched. Summary is
// set only for single-document requests that produced a row.
type GenerateSummaryResponse struct {
	Date      string           `json:"date"`
	Documents int              `json:"documents"`
	Summary   *DailySummaryDTO `json:"summary,omitempty"`
}
