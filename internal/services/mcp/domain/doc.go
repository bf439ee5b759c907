// Package domain translates MCP tool calls into session host RPCs.
//
// Each tool parses its input, calls the host over gRPC with correlation
// metadata, and returns a structured result that MCP clients can render.
package domain
