// Package events provides the installation lifecycle event stream.
//
// The orchestrator publishes one event per phase transition and per warning;
// external consumers (CLI, UI) subscribe with optional type and module
// filters. Publishing is non-blocking: a slow subscriber drops its own
// events and never stalls an installation.
package events
