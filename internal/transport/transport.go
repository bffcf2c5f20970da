// Package transport wraps a webcrawlerapi.Transport with cross-cutting
// behavior. Decorators compose like HTTP middleware.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawlerapi-go/internal/metrics"
	"github.com/JakeFAU/webcrawlerapi-go/internal/webcrawlerapi"
)

// RequestIDHeader carries a per-call identifier for tracing on both sides.
const RequestIDHeader = "X-Request-ID"

// Middleware decorates a Transport.
type Middleware func(webcrawlerapi.Transport) webcrawlerapi.Transport

// Waiter blocks until a call to rawURL may proceed.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// IDGenerator produces request identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Chain applies mws to base so the first middleware is the outermost.
func Chain(base webcrawlerapi.Transport, mws ...Middleware) webcrawlerapi.Transport {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// WithRateLimit waits on limiter before every call.
func WithRateLimit(limiter Waiter) Middleware {
	return func(next webcrawlerapi.Transport) webcrawlerapi.Transport {
		return webcrawlerapi.TransportFunc(func(ctx context.Context, req webcrawlerapi.Request) (webcrawlerapi.Response, error) {
			if err := limiter.Wait(ctx, req.URL); err != nil {
				return webcrawlerapi.Response{}, fmt.Errorf("transport: %w", err)
			}
			return next.Send(ctx, req)
		})
	}
}

// WithMetrics records the outcome and latency of every call.
func WithMetrics() Middleware {
	metrics.Init()
	return func(next webcrawlerapi.Transport) webcrawlerapi.Transport {
		return webcrawlerapi.TransportFunc(func(ctx context.Context, req webcrawlerapi.Request) (webcrawlerapi.Response, error) {
			start := time.Now()
			resp, err := next.Send(ctx, req)
			code := resp.StatusCode
			if err != nil {
				code = 0
			}
			metrics.ObserveAPIRequest(req.Method, req.URL, code, time.Since(start))
			return resp, err
		})
	}
}

// WithRequestID stamps each call with a fresh identifier unless one is set.
func WithRequestID(gen IDGenerator) Middleware {
	return func(next webcrawlerapi.Transport) webcrawlerapi.Transport {
		return webcrawlerapi.TransportFunc(func(ctx context.Context, req webcrawlerapi.Request) (webcrawlerapi.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				id, err := gen.NewID()
				if err != nil {
					return webcrawlerapi.Response{}, fmt.Errorf("transport: %w", err)
				}
				req.Header = req.Header.Clone()
				if req.Header == nil {
					req.Header = make(http.Header)
				}
				req.Header.Set(RequestIDHeader, id)
			}
			return next.Send(ctx, req)
		})
	}
}

// WithLogging emits one debug line per call.
func WithLogging(logger *zap.Logger) Middleware {
	return func(next webcrawlerapi.Transport) webcrawlerapi.Transport {
		return webcrawlerapi.TransportFunc(func(ctx context.Context, req webcrawlerapi.Request) (webcrawlerapi.Response, error) {
			start := time.Now()
			resp, err := next.Send(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.String("request_id", req.Header.Get(RequestIDHeader)),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Debug("service call failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("service call", append(fields, zap.Int("status", resp.StatusCode))...)
			return resp, nil
		})
	}
}

// WithTracing wraps every call in a client span and injects the span context
// into the outgoing headers with the global propagator.
func WithTracing(tracer trace.Tracer) Middleware {
	return func(next webcrawlerapi.Transport) webcrawlerapi.Transport {
		return webcrawlerapi.TransportFunc(func(ctx context.Context, req webcrawlerapi.Request) (webcrawlerapi.Response, error) {
			ctx, span := tracer.Start(ctx, "webcrawlerapi "+req.Method,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("url.full", req.URL),
				),
			)
			defer span.End()

			req.Header = req.Header.Clone()
			if req.Header == nil {
				req.Header = make(http.Header)
			}
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

			resp, err := next.Send(ctx, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return resp, err
			}
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			if resp.StatusCode >= 400 {
				span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
			}
			return resp, nil
		})
	}
}
