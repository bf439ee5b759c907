// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - Requests: gRPC call counts and latency by method and status code
//   - Voting: rounds opened, rounds resolved by outcome, ballots and vetoes
//   - Scenarios: active scenario count, stage transitions, instance endings
//   - Session: connected participants
//   - Storage: statistics saves by result
//
// # Integration
//
// Request metrics are collected by a gRPC unary interceptor. Everything is
// registered on a private registry and exposed in Prometheus format by
// Handler.
package metrics
