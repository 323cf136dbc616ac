package orchestrator

import (
	"net/url"

	"clientcore/internal/http1"
)

// Request is one outbound call submitted to a Broker (§3 "Request").
type Request struct {
	Method  string
	URL     *url.URL
	Headers *http1.Headers
	Body    []byte

	// attempt counts combined auth-challenge and redirect retries for the
	// current URL; it resets to 0 on any GOOD disposition and bounds the
	// total against Config.MaxAttempts (§9 Open Question #3).
	attempt int

	user, pass string // credentials available for auth challenges, if any
}

// NewRequest builds a Request ready for Broker.Submit.
func NewRequest(method string, u *url.URL) *Request {
	return &Request{Method: method, URL: u, Headers: http1.NewHeaders()}
}

// WithCredentials attaches Basic/Digest credentials usable on a 401/407
// challenge.
func (r *Request) WithCredentials(user, pass string) *Request {
	r.user, r.pass = user, pass
	return r
}

// Response is the result of a completed Request (§3 "Response").
type Response struct {
	StatusCode int
	Reason     string
	Headers    *http1.Headers
	Body       []byte
}
