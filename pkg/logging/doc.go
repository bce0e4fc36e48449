// Package logging provides a thin wrapper around log/slog with
// subsystem-tagged, printf-style helpers. Subsystems are free-form
// labels ("MapTools", "Viewer", "ConfigLoader") that make it easy to
// trace which part of the server produced a line.
package logging
