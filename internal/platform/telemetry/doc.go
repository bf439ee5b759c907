// Package telemetry provides observability for the scenario host.
//
// This package separates two distinct concerns:
//
// # Domain Events (telemetry/events)
//
// Domain events describe what happened in the session: voting rounds opening
// and resolving, scenarios activating, stages changing. They are fanned out to
// subscribers over NATS and never read back by the host.
//
// # Operational Metrics (telemetry/metrics)
//
// Operational metrics capture host health: request counts and latency, vote
// throughput, statistics save failures. They are exposed in Prometheus format.
package telemetry
