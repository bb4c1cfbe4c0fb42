// Package events defines the closed set of messages exchanged over the bus.
//
// Each event kind is a concrete struct with one constructor; payloads travel
// as a JSON envelope of {event_type, data} and are decoded by an explicit
// switch rather than generic key lookup. Commands ask a stage worker to do
// work and carry an attempt counter for deduplication; completion events
// report stage outcomes back to the coordinator and double as the surface
// front-end consumers subscribe to.
package events
