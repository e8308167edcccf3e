package models

import "regexp"

// dsnPattern guards the identifier before it is substituted into upstream
// URLs. Digits only; anything else is rejected before any network I/O.
var dsnPattern = regexp.MustCompile(`^\d+$`)

// RelayRequest describes one relay invocation.
type RelayRequest struct {
	// DSN is the detail sequence number identifying the target record.
	// Must match ^\d+$.
	DSN string `form:"dsn" json:"dsn"`

	// Format controls the fragment body format in the response.
	// Allowed: "html" (default), "markdown".
	Format string `form:"format" json:"format,omitempty"`

	// MaxAge enables a result-cache lookup when > 0 (milliseconds).
	// Only the aggregated result is cached; session cookies never are.
	MaxAge int `form:"max_age" json:"max_age,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *RelayRequest) Defaults() {
	if r.Format == "" {
		r.Format = FormatHTML
	}
}

// Validate checks the DSN and format. A nil return means the request is
// safe to relay upstream.
func (r *RelayRequest) Validate() *RelayError {
	if !dsnPattern.MatchString(r.DSN) {
		return NewRelayError(ErrCodeInvalidInput, "dsn must be digits only", nil)
	}
	if r.Format != FormatHTML && r.Format != FormatMarkdown {
		return NewRelayError(ErrCodeInvalidInput, "format must be html or markdown", nil)
	}
	return nil
}

// Fragment body formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)
