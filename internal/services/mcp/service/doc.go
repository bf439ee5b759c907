// Package service runs the MCP server in front of the session host.
//
// It owns transport selection (stdio or streamable HTTP) and the host
// connection; tool and resource semantics live in the domain package.
package service
