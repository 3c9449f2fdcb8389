// Package api defines the portal's operational surface and its wire-format
// types. The Portal service wraps the manifest store, builder, preview
// pipeline, and run history behind one API that the CLI calls in-process
// and the HTTP daemon exposes over the network.
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use
// RFC3339 with milliseconds. Build and fetch responses carry the external
// tool's captured output even on failure, because a failed build may have
// already committed manifest changes the caller needs to see.
package api
