package webcrawlerapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawlerapi-go/internal/jsonscan"
)

func TestNewValidatesAndDefaults(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"", "   "} {
		_, err := New(Config{APIKey: key}, &fakeTransport{}, &fakeSleeper{}, nil, nil)
		require.Error(t, err, "key %q", key)
	}
	_, err := New(Config{APIKey: "k"}, nil, &fakeSleeper{}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{APIKey: "k"}, &fakeTransport{}, nil, nil, nil)
	require.Error(t, err)

	c, err := New(Config{APIKey: "k"}, &fakeTransport{}, &fakeSleeper{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultPollDelay, c.cfg.PollDelay)
	assert.Equal(t, DefaultMaxPolls, c.cfg.MaxPolls)
	assert.Equal(t, DefaultUserAgent, c.cfg.UserAgent)

	c, err = New(Config{APIKey: "k", BaseURL: "http://localhost:8080/"}, &fakeTransport{}, &fakeSleeper{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.BaseURL())
}

func TestCrawlPollsUntilDone(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{
		submit: okBody(`{"id":"job-1"}`),
		statuses: []Response{
			okBody(`{"id":"job-1","status":"in_progress","recommended_pull_delay_ms":1500,"job_items":[]}`),
			okBody(`{"id":"job-1","status":"in_progress","job_items":[]}`),
			okBody(`{"id":"job-1","status":"done","url":"https://example.com","scrape_type":"markdown",` +
				`"job_items":[{"url":"https://example.com/a","status":"done","markdown_content_url":"https://cdn/a.md"},` +
				`{"url":"https://example.com/b","status":"error"}]}`),
		},
	}
	sleeper := &fakeSleeper{}
	observer := &recordingObserver{}
	c := newTestClient(t, transport, sleeper, observer)

	result, err := c.Crawl(context.Background(), CrawlRequest{
		URL:        "https://example.com",
		ScrapeType: ScrapeTypeMarkdown,
		ItemsLimit: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, transport.statusCalls())
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 5 * time.Second}, sleeper.slept())
	assert.Equal(t, JobStatusDone, result.Status)
	assert.Equal(t, "job-1", result.ID)
	assert.Equal(t, ScrapeTypeMarkdown, result.ScrapeType)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "https://example.com/a", result.Items[0].URL)
	assert.Equal(t, "https://cdn/a.md", result.Items[0].ContentURL(ScrapeTypeMarkdown))
	assert.Equal(t, "https://example.com/b", result.Items[1].URL)
	assert.Equal(t, []string{"crawl:done"}, observer.jobs())

	submit := transport.request(0)
	assert.Equal(t, http.MethodPost, submit.Method)
	assert.Equal(t, "http://api.test/v1/crawl", submit.URL)
	assert.JSONEq(t, `{"url":"https://example.com","scrape_type":"markdown","items_limit":10}`, submit.Body)
	assert.Equal(t, "Bearer test-key", submit.Header.Get("Authorization"))
	assert.Equal(t, "application/json", submit.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", submit.Header.Get("Pragma"))

	status := transport.request(1)
	assert.Equal(t, http.MethodGet, status.Method)
	assert.Equal(t, "http://api.test/v1/job/job-1", status.URL)
	assert.Empty(t, status.Body)
}

func TestCrawlOmitsEmptyScrapeType(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{
		submit:   okBody(`{"id":"job-1"}`),
		statuses: []Response{okBody(`{"status":"done"}`)},
	}
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	_, err := c.Crawl(context.Background(), CrawlRequest{URL: "https://example.com", ItemsLimit: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://example.com","items_limit":1}`, transport.request(0).Body)
}

func TestCrawlTerminalStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []JobStatus{JobStatusDone, JobStatusError, JobStatusCancelled} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()
			transport := &fakeTransport{
				submit:   okBody(`{"id":"job-1"}`),
				statuses: []Response{okBody(fmt.Sprintf(`{"status":%q}`, status))},
			}
			sleeper := &fakeSleeper{}
			c := newTestClient(t, transport, sleeper, nil)

			result, err := c.Crawl(context.Background(), CrawlRequest{URL: "https://example.com"})
			require.NoError(t, err)
			assert.Equal(t, status, result.Status)
			assert.Equal(t, 1, transport.statusCalls())
			assert.Empty(t, sleeper.slept())
		})
	}
}

func TestCrawlExhaustsPollBudget(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{
		submit: okBody(`{"id":"job-1"}`),
		statuses: []Response{
			okBody(`{"status":"new","url":"first"}`),
			okBody(`{"status":"in_progress","url":"second"}`),
			okBody(`{"status":"done","url":"third"}`),
		},
	}
	observer := &recordingObserver{}
	c := newTestClient(t, transport, &fakeSleeper{}, observer)

	result, err := c.Crawl(context.Background(), CrawlRequest{URL: "https://example.com", MaxPolls: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, transport.statusCalls())
	assert.Equal(t, JobStatusInProgress, result.Status)
	assert.Equal(t, "second", result.URL)
	assert.Equal(t, []string{"crawl:exhausted"}, observer.jobs())
}

func TestCrawlUnknownStatusKeepsPolling(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{
		submit: okBody(`{"id":"job-1"}`),
		statuses: []Response{
			okBody(`{"status":"DONE"}`),
			okBody(`{"status":"queued_somewhere"}`),
			okBody(`{}`),
			okBody(`{"status":"done"}`),
		},
	}
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	result, err := c.Crawl(context.Background(), CrawlRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, 4, transport.statusCalls())
	assert.Equal(t, JobStatusDone, result.Status)
}

func TestCrawlMissingJobID(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{}`, `{"id":""}`, `{"id":null}`, `not json`} {
		transport := &fakeTransport{submit: okBody(body)}
		c := newTestClient(t, transport, &fakeSleeper{}, nil)

		_, err := c.Crawl(context.Background(), CrawlRequest{URL: "https://example.com"})
		require.ErrorIs(t, err, ErrInvalidResponse, "body %q", body)
		assert.Equal(t, 0, transport.statusCalls())
	}
}

func TestCrawlInterruptedDuringSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := &fakeTransport{
		submit: okBody(`{"id":"job-1"}`),
		statuses: []Response{
			okBody(`{"status":"in_progress"}`),
			okBody(`{"status":"done"}`),
		},
	}
	sleeper := &fakeSleeper{onSleep: func(context.Context) error {
		cancel()
		return context.Canceled
	}}
	c := newTestClient(t, transport, sleeper, nil)

	result, err := c.Crawl(ctx, CrawlRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, ErrInterrupted)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CrawlResult{}, result)
	assert.Equal(t, 1, transport.statusCalls())
}

func TestCrawlStatusErrorStopsPolling(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{
		submit: okBody(`{"id":"job-1"}`),
		statuses: []Response{
			okBody(`{"status":"in_progress"}`),
			{StatusCode: http.StatusNotFound, Body: `{"error_code":"job_not_found","error_message":"no such job"}`},
			okBody(`{"status":"done"}`),
		},
	}
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	_, err := c.Crawl(context.Background(), CrawlRequest{URL: "https://example.com"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "job_not_found", apiErr.Code)
	assert.Equal(t, "no such job", apiErr.Message)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.True(t, apiErr.Remote())
	assert.Equal(t, 2, transport.statusCalls())
}

func TestScrapePollsWithFixedDelay(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{
		submit: okBody(`{"id":"scrape-9"}`),
		statuses: []Response{
			okBody(`{"status":"in_progress","recommended_pull_delay_ms":100}`),
			okBody(`{"status":"cancelled","recommended_pull_delay_ms":100}`),
			okBody(`{"status":"done","content":"# Example Domain\n","markdown":"# Example Domain\n",` +
				`"page_status_code":200,"url":"https://example.com"}`),
		},
	}
	sleeper := &fakeSleeper{}
	observer := &recordingObserver{}
	c := newTestClient(t, transport, sleeper, observer)

	result, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com", ScrapeType: ScrapeTypeMarkdown})
	require.NoError(t, err)

	assert.Equal(t, 3, transport.statusCalls())
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeper.slept())
	assert.Equal(t, JobStatusDone, result.Status)
	assert.Equal(t, "scrape-9", result.ID)
	assert.Equal(t, "# Example Domain\n", result.Content)
	assert.Equal(t, 200, result.PageStatusCode)
	assert.Equal(t, []string{"scrape:in_progress", "scrape:cancelled"}, observer.polls())

	submit := transport.request(0)
	assert.Equal(t, "http://api.test/v2/scrape?async=true", submit.URL)
	assert.JSONEq(t, `{"url":"https://example.com","scrape_type":"markdown"}`, submit.Body)
	assert.Equal(t, "http://api.test/v2/scrape/scrape-9", transport.request(1).URL)
}

func TestScrapeStopsOnError(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{
		submit:   okBody(`{"id":"scrape-1"}`),
		statuses: []Response{okBody(`{"status":"error"}`)},
	}
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	result, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, JobStatusError, result.Status)
	assert.Equal(t, 1, transport.statusCalls())
}

func TestScrapeCancelledExhaustsBudget(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{
		submit: okBody(`{"id":"scrape-1"}`),
		statuses: []Response{
			okBody(`{"status":"cancelled"}`),
			okBody(`{"status":"cancelled"}`),
			okBody(`{"status":"cancelled"}`),
		},
	}
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	result, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com", MaxPolls: 3})
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, result.Status)
	assert.Equal(t, 3, transport.statusCalls())
}

func TestScrapeAsyncMissingID(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{submit: okBody(`{"status":"new"}`)}
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.Contains(t, err.Error(), "scrape ID")
	assert.Equal(t, 0, transport.statusCalls())
}

func TestGetScrapeSingleCall(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{statuses: []Response{okBody(`{"status":"in_progress"}`)}}
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	result, err := c.GetScrape(context.Background(), "id with/slash")
	require.NoError(t, err)
	assert.Equal(t, JobStatusInProgress, result.Status)
	assert.Equal(t, "http://api.test/v2/scrape/id%20with%2Fslash", transport.request(0).URL)
}

func TestRemoteErrorFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "structured",
			status:      http.StatusUnauthorized,
			body:        `{"error_code":"unauthorized","error_message":"bad key"}`,
			wantCode:    "unauthorized",
			wantMessage: "bad key",
		},
		{
			name:        "message fallback",
			status:      http.StatusBadRequest,
			body:        `{"message":"url is required"}`,
			wantCode:    CodeUnknown,
			wantMessage: "url is required",
		},
		{
			name:        "status fallback",
			status:      http.StatusBadGateway,
			body:        `<html>bad gateway</html>`,
			wantCode:    CodeUnknown,
			wantMessage: "Request failed with status 502",
		},
		{
			name:        "empty body",
			status:      http.StatusInternalServerError,
			body:        "",
			wantCode:    CodeUnknown,
			wantMessage: "Request failed with status 500",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			transport := &fakeTransport{submit: Response{StatusCode: tt.status, Body: tt.body}}
			c := newTestClient(t, transport, &fakeSleeper{}, nil)

			_, err := c.ScrapeAsync(context.Background(), ScrapeRequest{URL: "https://example.com"})
			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestNetworkErrorIsWrapped(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	transport := &fakeTransport{sendErr: cause}
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	_, err := c.StartCrawl(context.Background(), CrawlRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, ErrNetwork)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Network error: connection refused")
}

func TestTransportFailureAfterCancelIsInterrupted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	transport := &fakeTransport{sendErr: errors.New("request canceled")}
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	_, err := c.Crawl(ctx, CrawlRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, ErrInterrupted)
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestConcurrentCrawlsShareNoState(t *testing.T) {
	t.Parallel()

	transport := TransportFunc(func(_ context.Context, req Request) (Response, error) {
		switch {
		case req.Method == http.MethodPost:
			target, _ := jsonscan.Value(req.Body, "url")
			return okBody(fmt.Sprintf(`{"id":%q}`, strings.TrimPrefix(target, "https://"))), nil
		default:
			id := req.URL[strings.LastIndex(req.URL, "/")+1:]
			return okBody(fmt.Sprintf(`{"id":%q,"status":"done","url":%q}`, id, id)), nil
		}
	})
	c := newTestClient(t, transport, &fakeSleeper{}, nil)

	var wg sync.WaitGroup
	results := make([]CrawlResult, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Crawl(context.Background(), CrawlRequest{URL: fmt.Sprintf("https://job%d", i)})
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("job%d", i), result.ID)
	}
}

func TestCrawlItemContentURL(t *testing.T) {
	t.Parallel()

	item := CrawlItem{
		RawContentURL:      "http://storage.com/raw",
		CleanedContentURL:  "http://storage.com/cleaned",
		MarkdownContentURL: "http://storage.com/markdown",
	}
	assert.Equal(t, "http://storage.com/raw", item.ContentURL(ScrapeTypeHTML))
	assert.Equal(t, "http://storage.com/cleaned", item.ContentURL(ScrapeTypeCleaned))
	assert.Equal(t, "http://storage.com/markdown", item.ContentURL(ScrapeTypeMarkdown))
	assert.Empty(t, item.ContentURL("invalid"))
	assert.Empty(t, item.ContentURL(""))
	assert.Empty(t, CrawlItem{}.ContentURL(ScrapeTypeHTML))
}

func TestScrapeTypeValid(t *testing.T) {
	t.Parallel()

	for _, st := range []ScrapeType{"", ScrapeTypeHTML, ScrapeTypeCleaned, ScrapeTypeMarkdown} {
		assert.True(t, st.Valid(), "%q", st)
	}
	assert.False(t, ScrapeType("pdf").Valid())
	assert.False(t, ScrapeType("Markdown").Valid())
}

func TestResultStrings(t *testing.T) {
	t.Parallel()

	assert.Contains(t, CrawlResult{ID: "test-id-123", Status: JobStatusDone}.String(), "test-id-123")
	assert.Contains(t, ScrapeResult{Status: JobStatusDone, URL: "https://example.com"}.String(), "done")
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	err := &Error{Code: "test_error", Message: "Test error message"}
	assert.Equal(t, "test_error: Test error message", err.Error())
	assert.Equal(t, "interrupted", ErrInterrupted.Error())
	assert.False(t, errors.Is(err, ErrInterrupted))
	assert.False(t, err.Remote())
}

func newTestClient(t *testing.T, transport Transport, sleeper Sleeper, observer Observer) *Client {
	t.Helper()
	c, err := New(Config{APIKey: "test-key", BaseURL: "http://api.test"}, transport, sleeper, observer, zap.NewNop())
	require.NoError(t, err)
	return c
}

func okBody(body string) Response {
	return Response{StatusCode: http.StatusOK, Body: body}
}

// fakeTransport answers POSTs with submit and GETs with statuses in order.
type fakeTransport struct {
	mu       sync.Mutex
	submit   Response
	statuses []Response
	sendErr  error
	requests []Request
	gets     int
}

func (f *fakeTransport) Send(_ context.Context, req Request) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.sendErr != nil {
		return Response{}, f.sendErr
	}
	if req.Method == http.MethodPost {
		return f.submit, nil
	}
	if f.gets >= len(f.statuses) {
		return Response{}, errors.New("unexpected status call")
	}
	resp := f.statuses[f.gets]
	f.gets++
	return resp, nil
}

func (f *fakeTransport) statusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeTransport) request(i int) Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

type fakeSleeper struct {
	mu      sync.Mutex
	waits   []time.Duration
	onSleep func(ctx context.Context) error
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	hook := s.onSleep
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return nil
}

func (s *fakeSleeper) slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

type recordingObserver struct {
	mu        sync.Mutex
	pollEvts  []string
	jobEvents []string
}

func (o *recordingObserver) ObservePoll(kind, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pollEvts = append(o.pollEvts, kind+":"+status)
}

func (o *recordingObserver) ObserveJob(kind, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobEvents = append(o.jobEvents, kind+":"+status)
}

func (o *recordingObserver) polls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.pollEvts...)
}

func (o *recordingObserver) jobs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.jobEvents...)
}
