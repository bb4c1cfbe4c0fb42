// Package logging builds the slog loggers used across the scribed daemon.
//
// It provides JSON and console handlers, standardized field names for task
// and stage correlation, attribute helpers, and context plumbing so event
// handlers can carry task/stage identifiers without threading them through
// every call site.
package logging
