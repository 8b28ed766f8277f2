// Package mcp exposes the savekeep service as Model Context Protocol tools.
//
// Tools are named "<group>_<action>", for example "snapshot_create" or
// "files_add". Each tool decodes its arguments into a request struct, calls
// the matching [service.Service] operation and returns the result as JSON
// text content. Failures are returned as tool results with IsError set and
// a body of the form
//
//	{"error": {"code": "SnapshotNotFound", "message": "..."}}
//
// so the calling model can read the failure kind.
package mcp
