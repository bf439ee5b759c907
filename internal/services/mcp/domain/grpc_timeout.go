package domain

import "time"

// grpcCallTimeout caps the time for a single host call from an MCP tool handler.
const grpcCallTimeout = 5 * time.Second
