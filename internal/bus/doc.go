// Package bus provides the typed publish/subscribe transport the pipeline
// components communicate through.
//
// Two implementations exist: an in-process bus for single-node deployments
// and a NATS-backed bus for horizontally scaled ones. Delivery is
// at-least-once from the subscriber's point of view: NATS may redeliver, and
// messages may also be lost after the transport gives up. Handlers must
// be idempotent and the coordinator covers losses with stage deadlines.
// Handler errors and panics are logged and never crash the subscriber loop.
package bus
