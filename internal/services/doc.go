// Package services defines shared utilities consumed by the portal
// components and the transport layers.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent between the CLI and the HTTP API.
//   - The HTTPStatus mapping from error markers to response codes.
//   - Context helpers that stamp correlation identifiers for logging.
//
// Use these helpers when wiring new portal logic so operational behaviour
// (error handling, observability) stays uniform across components.
package services
