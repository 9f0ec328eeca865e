// Package session provides per-user bounded conversation state with TTL
// eviction.
//
// Each user has at most one active session holding the N most recent
// messages. A per-user lock serializes same-user mutations while keeping
// cross-user operations fully parallel. An independent background sweeper
// evicts sessions idle beyond the TTL; it uses non-blocking lock attempts so
// it can never stall a request path.
//
// All state is process-memory only and lost on restart by design.
package session
