// Package services defines the error taxonomy shared by the coordinator,
// stage workers, and adapters.
//
// Errors are classified by wrapping them with one of the exported sentinel
// markers. The coordinator inspects the marker to decide between retrying a
// stage, failing it permanently, or ignoring a stale duplicate; callers of
// coordinator methods receive precondition and validation errors directly.
package services
