// Package core runs the manifest compliance pipeline for the web and CLI
// front ends.
//
// # Architecture
//
// A [Service] wires the stages together:
//
//   - parser: bytes to a flat record set, dispatched by file extension
//   - mapping: source headers to canonical fields
//   - rules: per-record validation, run in parallel
//   - dedupe: business-key duplicate groups
//   - report: 0-100 scoring, suggestions and next steps
//   - correct: autofixes and regeneration in any output format
//   - fixloop: iterative single-record correction with a collaborator
//
// Every document-sized operation takes a slot from the [DocumentLimiter]
// and runs under the configured timeout. Shutdown waits for in-flight
// documents with [Service.WaitForDrain].
//
// # Failure model
//
// A document that cannot be parsed produces a zero-record report with one
// critical issue rather than an error. Validation findings are data.
// Collaborator failures fall back to rule-derived output and set
// fallback_used. Only a missing file, oversize input, an invalid fix
// request, limiter saturation and cancellation reach the caller as errors.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError].
// Each category has a code for support reference:
//
//   - PARSE001-PARSE004: unreadable documents
//   - FILE001-FILE005: missing, empty or oversize uploads
//   - COLLAB001-COLLAB002, REF001: collaborator and reference lookups
//   - RPT001-RPT002: saved reports
//   - UPL002-UPL005: busy, cancelled or timed out requests
//
// # Saved reports
//
// Reports requested with persist are kept in a [ReportStore]: Postgres
// ([PGStore]) when DATABASE_URL is set, otherwise an in-process LRU
// ([MemoryStore]).
package core
