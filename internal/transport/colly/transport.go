// Package collytransport sends client calls through a gocolly collector.
package collytransport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/webcrawlerapi-go/internal/webcrawlerapi"
)

const defaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	// UserAgent applies only when a request carries no User-Agent header.
	UserAgent string
	Timeout   time.Duration
	// RoundTripper replaces the pooled default transport, mostly for tests.
	RoundTripper http.RoundTripper
}

// Transport implements webcrawlerapi.Transport using the Colly collector.
type Transport struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Transport.
func New(cfg Config) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	// Status endpoints are polled repeatedly and every body matters.
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	c.MaxBodySize = 0

	rt := cfg.RoundTripper
	if rt == nil {
		rt = newHTTPTransport()
	}
	c.WithTransport(rt)

	return &Transport{cfg: cfg, baseCollector: c}
}

// Send performs one HTTP exchange. Any response with a status code, 2xx or
// not, is returned without error.
func (t *Transport) Send(ctx context.Context, req webcrawlerapi.Request) (webcrawlerapi.Response, error) {
	var (
		result  webcrawlerapi.Response
		sendErr error
	)
	collector := t.buildCollector(&result, &sendErr)

	if err := t.runCollector(ctx, collector, req, &result, &sendErr); err != nil {
		return webcrawlerapi.Response{}, err
	}
	return result, nil
}

func (t *Transport) buildCollector(result *webcrawlerapi.Response, sendErr *error) *colly.Collector {
	collector := t.baseCollector.Clone()
	if t.cfg.UserAgent != "" {
		collector.UserAgent = t.cfg.UserAgent
	}
	collector.SetRequestTimeout(t.cfg.Timeout)
	t.configureCollectorHooks(collector, result, sendErr)
	return collector
}

func (t *Transport) configureCollectorHooks(
	hooks collectorHooks,
	result *webcrawlerapi.Response,
	sendErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = webcrawlerapi.Response{
			StatusCode: r.StatusCode,
			Body:       string(r.Body),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		// Colly reports some HTTP statuses through OnError even when a body arrived.
		if r != nil && r.StatusCode > 0 {
			*result = webcrawlerapi.Response{
				StatusCode: r.StatusCode,
				Body:       string(r.Body),
			}
			return
		}
		*sendErr = err
	})
}

func (t *Transport) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	req webcrawlerapi.Request,
	result *webcrawlerapi.Response,
	sendErr *error,
) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var header http.Header
	if req.Header != nil {
		header = req.Header.Clone()
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, req.URL, body, nil, header)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly send canceled: %w", ctx.Err())
	case err := <-done:
		if *sendErr != nil {
			return fmt.Errorf("colly response failed: %w", *sendErr)
		}
		if result.StatusCode > 0 {
			return nil
		}
		if err != nil {
			return fmt.Errorf("colly request failed: %w", err)
		}
		return fmt.Errorf("colly request to %s produced no response", req.URL)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
