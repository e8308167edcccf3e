package models

// Follow-up endpoint names. These are the keys of RelayResponse.Endpoints
// and match the upstream widget each fragment came from:
//
//	site_files  → WizSiteFiles           (downloadable documents)
//	addtl_docs  → WizAddtionalURLsDocs   (additional URL links)
//	actions     → WizActions             (actions with attached documents)
const (
	EndpointSiteFiles = "site_files"
	EndpointAddtlDocs = "addtl_docs"
	EndpointActions   = "actions"
)

// EndpointNames lists the follow-up endpoints in their fixed order.
var EndpointNames = []string{EndpointSiteFiles, EndpointAddtlDocs, EndpointActions}

// RelayResponse is the aggregated result of one relay invocation.
type RelayResponse struct {
	// Success indicates whether the relay completed without errors.
	Success bool `json:"success"`

	// DSN is the identifier the relay was invoked with.
	DSN string `json:"dsn,omitempty"`

	// Status is the HTTP status of the primary detail-page fetch.
	// Redirects are not followed, so 3xx values appear here as-is.
	Status int `json:"status,omitempty"`

	// Title is the detail page <title>, when one could be extracted.
	Title string `json:"title,omitempty"`

	// CookiesFound is the number of Set-Cookie headers harvested from
	// the primary response.
	CookiesFound int `json:"cookies_found"`

	// Endpoints maps each follow-up endpoint name to its fragment.
	// Non-200 fragment statuses pass through untouched; an empty
	// fragment set is a valid (if unhelpful) answer.
	Endpoints map[string]*EndpointResult `json:"endpoints,omitempty"`

	// Timing provides duration breakdowns for the invocation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// EndpointResult is one follow-up fragment with its HTTP status.
type EndpointResult struct {
	Body   string `json:"body"`
	Status int    `json:"status"`
}

// TimingInfo breaks down the time spent in each relay phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// DetailMs is the primary detail-page fetch duration.
	DetailMs int64 `json:"detail_ms,omitempty"`

	// FanoutMs is the concurrent follow-up fetch duration.
	FanoutMs int64 `json:"fanout_ms,omitempty"`
}

// InfoResponse is returned when no dsn is supplied: a static description
// of the service with no upstream activity.
type InfoResponse struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Usage     string   `json:"usage"`
	Endpoints []string `json:"endpoints"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // always "healthy"; the relay holds no pooled resources
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
