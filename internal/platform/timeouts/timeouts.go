// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the scenario host.
const GRPCDial = 2 * time.Second

// GRPCRequest caps a single request from a tool to the scenario host.
const GRPCRequest = 5 * time.Second

// ReadHeader limits how long the metrics HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown, including the final statistics flush.
const Shutdown = 5 * time.Second

// HostTick is the cadence at which the host advances timers and the voting
// countdown.
const HostTick = 100 * time.Millisecond
