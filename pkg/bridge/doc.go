// Package bridge carries reconciliation side effects to a host renderer.
//
// The host owns a retained render tree addressed by element keys. Transport
// wraps a Host, enforces per-key command order, recovers host panics and
// reports every command to an optional Observer. Module is the primary hook
// module: it assigns handles on create and turns hook calls into commands.
//
// For one key, commands must arrive in the order
//
//	create < insert < update < remove < destroy
//
// with one exception: a live element may be re-inserted (moved) after it has
// been updated. Anything else is rejected with ErrOutOfOrder before it
// reaches the host.
package bridge
