package webcrawlerapi

import (
	"context"
	"net/http"
	"time"
)

// Request is one HTTP call made by the client.
type Request struct {
	Method string
	URL    string
	// Body is sent verbatim; empty means no body.
	Body   string
	Header http.Header
}

// Response is the raw outcome of a Request. Non-2xx responses are returned
// as values, not errors.
type Response struct {
	StatusCode int
	Body       string
}

// Transport performs HTTP calls. It returns an error only when no response
// was received at all.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (Response, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Sleeper blocks between polls. It returns early with an error when ctx is
// done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Observer receives poll and job outcomes, typically for metrics.
type Observer interface {
	ObservePoll(kind string, status string, wait time.Duration)
	ObserveJob(kind string, status string)
}

type nopObserver struct{}

func (nopObserver) ObservePoll(string, string, time.Duration) {}
func (nopObserver) ObserveJob(string, string)                 {}
