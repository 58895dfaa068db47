// Package session keeps script-visible element proxies in sync with a host
// renderer.
//
// A Session owns one document: a Store holding the committed virtual tree
// and its key table, a reconciler wired to a bridge.Transport, and the
// proxies handed out to scripts. Every proxy mutation rebuilds the VNode of
// the nearest rendered proxy, diffs it against the committed tree and
// applies the ops through the hook pipeline. The store is committed only
// when the whole pass succeeds.
//
// # Ordering
//
// Mutations run one at a time. A mutation issued while a pass is in flight
// (from a listener, a hook or an inline timer) is queued and applied after
// the current one, against the tree that pass committed:
//
//	s.Body().AddListener("click", func(vdom.Event) {
//		counter.SetText("1") // queued
//		counter.SetText("2") // queued, wins
//	})
//
// A Session is owned by a single goroutine and is not safe for concurrent
// use. Transports that read host events on their own goroutine hand them
// over through a channel.
package session
