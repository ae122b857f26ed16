// Package requestid provides HTTP middleware and context helpers for
// request correlation identifiers.
//
// Middleware reuses a client-supplied "X-Request-ID" header when it passes
// validation, otherwise generates a UUIDv4, stores the ID in the request
// context and echoes it back in the response header. FromContext and
// WithContext move the ID through call chains, and LoggerExtractor plugs
// it into the logger package's context extractors so every log record of a
// webhook delivery or API call carries the same ID.
//
// The package never returns errors; invalid client-supplied IDs are
// silently replaced.
package requestid
