package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"clientcore/internal/authheader"
)

// Disposition is what the broker decides to do after one request attempt
// completes (§4.6), replacing the original's goto-based control flow.
type Disposition int

const (
	DispositionDone Disposition = iota
	DispositionRetry
	DispositionRedirect
	DispositionFault
)

func (d Disposition) String() string {
	switch d {
	case DispositionDone:
		return "done"
	case DispositionRetry:
		return "retry"
	case DispositionRedirect:
		return "redirect"
	case DispositionFault:
		return "fault"
	default:
		return "unknown"
	}
}

// EventKind classifies what happened on the wire for one attempt.
type EventKind int

const (
	EventResponse EventKind = iota
	EventTimeout
	EventConnError
)

// Event is the sum type fed into Broker.dispose (§4.6 "Event").
type Event struct {
	Kind     EventKind
	Response *Response
	Err      error
}

var brokerIDs uint64

// Broker owns one logical client connection's retry/redirect state
// machine (§4.6), grounded on the teacher's upstreamState ownership
// pattern generalized from upstream health tracking to per-request
// disposition. mu guards only the closed flag: Submit releases it before
// the first attempt, so concurrent Submit calls on one Broker run their
// attempts concurrently and are not serialized.
type Broker struct {
	ID uint64

	mu      sync.Mutex
	cfg     *Config
	log     *zap.Logger
	send    func(ctx context.Context, req *Request) Event
	closed  bool
}

// Transport is the function a Broker calls to actually perform one
// attempt; it is supplied by the caller (pkg/netclient) so this package
// stays free of direct h2/http1/wsframe wiring concerns while still
// owning the decision logic.
type Transport func(ctx context.Context, req *Request) Event

func NewBroker(cfg *Config, log *zap.Logger, send Transport) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{
		ID:   atomic.AddUint64(&brokerIDs, 1),
		cfg:  cfg,
		log:  log,
		send: send,
	}
}

// Submit drives req through the broker's state machine until it reaches
// DispositionDone or DispositionFault (§4.6 "Submit").
func (b *Broker) Submit(ctx context.Context, req *Request) (*Response, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("orchestrator: broker %d is closed", b.ID)
	}
	b.mu.Unlock()

	observeRequest(req.Method)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := b.send(ctx, req)
		disp, resp, err := b.dispose(ev, req)
		observeDisposition(disp)

		switch disp {
		case DispositionDone:
			req.attempt = 0
			return resp, nil
		case DispositionRetry:
			continue
		case DispositionRedirect:
			continue
		case DispositionFault:
			return nil, err
		default:
			return nil, fmt.Errorf("orchestrator: unknown disposition %v", disp)
		}
	}
}

// dispose is the single decision point mapping one Event to a
// Disposition, mutating req in place for the next loop iteration
// (§4.6 "disposeResponse").
func (b *Broker) dispose(ev Event, req *Request) (Disposition, *Response, error) {
	switch ev.Kind {
	case EventTimeout, EventConnError:
		return DispositionFault, nil, ev.Err

	case EventResponse:
		resp := ev.Response
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return DispositionDone, resp, nil

		case resp.StatusCode == 401 || resp.StatusCode == 407:
			return b.disposeAuthChallenge(resp, req)

		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			return b.disposeRedirect(resp, req)

		default:
			return DispositionDone, resp, nil // non-retriable status, surfaced as-is
		}

	default:
		return DispositionFault, nil, fmt.Errorf("orchestrator: unknown event kind %v", ev.Kind)
	}
}

func (b *Broker) disposeAuthChallenge(resp *Response, req *Request) (Disposition, *Response, error) {
	if req.attempt >= b.cfg.MaxAttempts {
		return DispositionFault, nil, fmt.Errorf("orchestrator: exceeded %d auth/redirect attempts", b.cfg.MaxAttempts)
	}
	if req.user == "" {
		return DispositionDone, resp, nil // no credentials to retry with
	}

	headerName := "WWW-Authenticate"
	authzName := "Authorization"
	if resp.StatusCode == 407 {
		headerName, authzName = "Proxy-Authenticate", "Proxy-Authorization"
	}
	challengeHdr := resp.Headers.Get(headerName)
	if challengeHdr == "" {
		return DispositionDone, resp, nil
	}
	ch, err := authheader.ParseChallenge(challengeHdr)
	if err != nil {
		return DispositionDone, resp, nil
	}

	var authz string
	switch strings.ToLower(ch.Scheme) {
	case "basic":
		authz = authheader.BuildBasic(req.user, req.pass)
	case "digest":
		authz, err = authheader.BuildDigest(ch, req.Method, req.URL.RequestURI(), req.user, req.pass)
		if err != nil {
			return DispositionDone, resp, nil
		}
	default:
		return DispositionDone, resp, nil
	}

	req.Headers.Set(authzName, authz)
	req.attempt++
	observeAuthRetry(ch.Scheme)
	return DispositionRetry, nil, nil
}

// disposeRedirect rewrites req.URL per the redirect's Location, applying
// the scheme-change rule decided in §9 Open Question #2: the redirect
// URL's scheme entirely replaces the current scheme, and TLS is
// re-negotiated whenever the new scheme requires it (left to the
// transport layer, which re-dials when req.URL.Scheme changes). Per §9
// Open Question #3, req.attempt is the single combined bound shared with
// disposeAuthChallenge, not a separate redirect counter.
func (b *Broker) disposeRedirect(resp *Response, req *Request) (Disposition, *Response, error) {
	if req.attempt >= b.cfg.MaxAttempts {
		return DispositionFault, nil, fmt.Errorf("orchestrator: exceeded %d auth/redirect attempts", b.cfg.MaxAttempts)
	}
	loc := resp.Headers.Get("Location")
	if loc == "" {
		return DispositionDone, resp, nil
	}
	next, err := url.Parse(loc)
	if err != nil {
		return DispositionDone, resp, nil
	}
	resolved := req.URL.ResolveReference(next)
	req.URL = resolved
	req.attempt++
	observeRedirect(resolved.Scheme)

	// 302/303 downgrade a non-GET/HEAD-safe method to GET per common
	// browser behavior; 301/307/308 retain the original method and body.
	if resp.StatusCode == 302 || resp.StatusCode == 303 {
		if req.Method != "GET" && req.Method != "HEAD" {
			req.Method = "GET"
			req.Body = nil
		}
	}
	return DispositionRedirect, nil, nil
}

func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
