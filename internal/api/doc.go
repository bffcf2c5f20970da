// Package api hosts the operator HTTP surface that runs next to the client
// when metrics.addr is set:
//   - GET /healthz for liveness.
//   - GET /readyz, which runs the registered readiness checks.
//   - GET /metrics for Prometheus scraping.
package api
