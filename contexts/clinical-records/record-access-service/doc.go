// Package recordaccess implements access-controlled patient records.
//
// Participants keep a list of identifiers they have authorized. Authorized
// participants may append reports to, or merge health data into, a patient's
// record. Every successful change is stored together with one audit event in
// a transactional outbox that the worker relays afterwards.
//
// Layering:
// - domain: participants, clinical profiles, the access gate, audit event kinds
// - application: commands/queries/workers using explicit ports
// - ports: stable boundaries for registry, outbox, idempotency and audit sinks
// - adapters: concrete HTTP, memory, postgres, identity, cache and event implementations
// - transport: module-private DTOs for HTTP contracts
//
// Reports are append-only. There is deliberately no removal operation.
package recordaccess
