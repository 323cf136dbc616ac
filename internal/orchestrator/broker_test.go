package orchestrator

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"clientcore/internal/http1"
)

func testConfig() *Config {
	c := &Config{}
	normalize(c)
	return c
}

func TestSubmitSuccessOnFirstAttempt(t *testing.T) {
	b := NewBroker(testConfig(), nil, func(ctx context.Context, req *Request) Event {
		return Event{Kind: EventResponse, Response: &Response{StatusCode: 200, Headers: http1.NewHeaders()}}
	})
	u, _ := url.Parse("https://example.com/")
	resp, err := b.Submit(context.Background(), NewRequest("GET", u))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestSubmitConnErrorFaults(t *testing.T) {
	b := NewBroker(testConfig(), nil, func(ctx context.Context, req *Request) Event {
		return Event{Kind: EventConnError, Err: errors.New("boom")}
	})
	u, _ := url.Parse("https://example.com/")
	_, err := b.Submit(context.Background(), NewRequest("GET", u))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSubmitRedirectFollowed(t *testing.T) {
	calls := 0
	b := NewBroker(testConfig(), nil, func(ctx context.Context, req *Request) Event {
		calls++
		if calls == 1 {
			h := http1.NewHeaders()
			h.Set("Location", "https://example.com/next")
			return Event{Kind: EventResponse, Response: &Response{StatusCode: 302, Headers: h}}
		}
		if req.URL.Path != "/next" {
			t.Fatalf("expected redirected path, got %s", req.URL.Path)
		}
		return Event{Kind: EventResponse, Response: &Response{StatusCode: 200, Headers: http1.NewHeaders()}}
	})
	u, _ := url.Parse("https://example.com/start")
	resp, err := b.Submit(context.Background(), NewRequest("GET", u))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 || calls != 2 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode, calls)
	}
}

func TestSubmitRedirect303DowngradesPOSTToGET(t *testing.T) {
	var secondMethod string
	b := NewBroker(testConfig(), nil, func(ctx context.Context, req *Request) Event {
		if secondMethod == "" && req.Method == "POST" {
			h := http1.NewHeaders()
			h.Set("Location", "/done")
			secondMethod = "pending"
			return Event{Kind: EventResponse, Response: &Response{StatusCode: 303, Headers: h}}
		}
		secondMethod = req.Method
		return Event{Kind: EventResponse, Response: &Response{StatusCode: 200, Headers: http1.NewHeaders()}}
	})
	u, _ := url.Parse("https://example.com/form")
	req := NewRequest("POST", u)
	req.Body = []byte("data")
	if _, err := b.Submit(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if secondMethod != "GET" {
		t.Fatalf("expected downgrade to GET, got %s", secondMethod)
	}
}

func TestSubmitRedirect301PreservesPOST(t *testing.T) {
	var secondMethod string
	var secondBody []byte
	b := NewBroker(testConfig(), nil, func(ctx context.Context, req *Request) Event {
		if secondMethod == "" && req.Method == "POST" {
			h := http1.NewHeaders()
			h.Set("Location", "/done")
			secondMethod = "pending"
			return Event{Kind: EventResponse, Response: &Response{StatusCode: 301, Headers: h}}
		}
		secondMethod = req.Method
		secondBody = req.Body
		return Event{Kind: EventResponse, Response: &Response{StatusCode: 200, Headers: http1.NewHeaders()}}
	})
	u, _ := url.Parse("https://example.com/form")
	req := NewRequest("POST", u)
	req.Body = []byte("data")
	if _, err := b.Submit(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if secondMethod != "POST" {
		t.Fatalf("expected 301 to preserve POST, got %s", secondMethod)
	}
	if string(secondBody) != "data" {
		t.Fatalf("expected 301 to preserve body, got %q", secondBody)
	}
}

func TestSubmitExceedsMaxAttemptsOnRedirectLoop(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 2
	calls := 0
	b := NewBroker(cfg, nil, func(ctx context.Context, req *Request) Event {
		calls++
		h := http1.NewHeaders()
		h.Set("Location", "/loop")
		return Event{Kind: EventResponse, Response: &Response{StatusCode: 302, Headers: h}}
	})
	u, _ := url.Parse("https://example.com/")
	_, err := b.Submit(context.Background(), NewRequest("GET", u))
	if err == nil {
		t.Fatal("expected attempt-limit error")
	}
	if calls != cfg.MaxAttempts+1 {
		t.Fatalf("expected one initial call plus MaxAttempts retries, got %d", calls)
	}
}

func TestSubmitAuthChallengeRetriesWithBasic(t *testing.T) {
	calls := 0
	b := NewBroker(testConfig(), nil, func(ctx context.Context, req *Request) Event {
		calls++
		if calls == 1 {
			h := http1.NewHeaders()
			h.Set("WWW-Authenticate", `Basic realm="test"`)
			return Event{Kind: EventResponse, Response: &Response{StatusCode: 401, Headers: h}}
		}
		if req.Headers.Get("Authorization") == "" {
			t.Fatal("expected Authorization header on retry")
		}
		return Event{Kind: EventResponse, Response: &Response{StatusCode: 200, Headers: http1.NewHeaders()}}
	})
	u, _ := url.Parse("https://example.com/secret")
	req := NewRequest("GET", u).WithCredentials("alice", "secret")
	resp, err := b.Submit(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 || calls != 2 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode, calls)
	}
}

func TestSubmitAuthChallengeWithoutCredentialsSurfaces401(t *testing.T) {
	b := NewBroker(testConfig(), nil, func(ctx context.Context, req *Request) Event {
		h := http1.NewHeaders()
		h.Set("WWW-Authenticate", `Basic realm="test"`)
		return Event{Kind: EventResponse, Response: &Response{StatusCode: 401, Headers: h}}
	})
	u, _ := url.Parse("https://example.com/secret")
	resp, err := b.Submit(context.Background(), NewRequest("GET", u))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401 surfaced, got %d", resp.StatusCode)
	}
}

func TestSubmitCombinedAttemptsBoundedByMaxAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 2
	calls := 0
	b := NewBroker(cfg, nil, func(ctx context.Context, req *Request) Event {
		calls++
		h := http1.NewHeaders()
		h.Set("WWW-Authenticate", `Basic realm="test"`)
		return Event{Kind: EventResponse, Response: &Response{StatusCode: 401, Headers: h}}
	})
	u, _ := url.Parse("https://example.com/secret")
	req := NewRequest("GET", u).WithCredentials("alice", "secret")
	_, err := b.Submit(context.Background(), req)
	if err == nil {
		t.Fatal("expected attempt-limit error")
	}
	if calls != cfg.MaxAttempts+1 {
		t.Fatalf("expected one initial call plus MaxAttempts retries, got %d", calls)
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue()
	u, _ := url.Parse("https://example.com/")
	r1, r2 := NewRequest("GET", u), NewRequest("POST", u)
	q.Push(r1)
	q.Push(r2)
	got1, ok := q.Pop()
	if !ok || got1 != r1 {
		t.Fatal("expected r1 first")
	}
	got2, ok := q.Pop()
	if !ok || got2 != r2 {
		t.Fatal("expected r2 second")
	}
}

func TestQueueCloseUnblocksPop(t *testing.T) {
	q := NewQueue()
	done := make(chan struct{})
	go func() {
		_, ok := q.Pop()
		if ok {
			t.Error("expected ok=false after close")
		}
		close(done)
	}()
	q.Close()
	<-done
}
