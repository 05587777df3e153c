// Package observe provides observability primitives for the MCP server.
//
// It owns OpenTelemetry setup (tracer and meter providers plus exporters),
// a JSON structured logger that redacts credential fields, metric
// instruments for tool calls and credential resolution, and an mcp-go
// tool handler middleware that ties the three together.
//
// Credential values are never logged. Field keys listed in RedactedFields
// are replaced with "[REDACTED]" regardless of where they are bound.
package observe
