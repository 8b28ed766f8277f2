// Package service is the backend contract of savekeep.
//
// A [Service] wires the entry registry, the file-set manager, the snapshot
// engine and the operation journal together. The CLI, the HTTP API and the
// MCP server all talk to it and nothing else.
//
// Errors returned by a Service are prefixed with the operation that failed,
// for example `backup "project": snapshot not found`, and keep their kind
// from internal/errors in the chain.
package service
