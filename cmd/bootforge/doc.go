// Package main hosts the bootforge CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the portal in-process: manifest file
// listing and editing, version inspection, bundle builds, preview fetches,
// run history, configuration scaffolding, and a foreground serve mode. It
// centralizes configuration resolution and portal assembly so subcommands
// can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
