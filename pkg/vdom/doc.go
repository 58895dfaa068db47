// Package vdom provides the virtual tree used to mirror a script-driven
// document onto a host renderer.
//
// # Core Types
//
// VNode is the fundamental building block. Its Sel names the element
// (optionally decorated with #id and .class shorthand), an empty Sel marks a
// text node. Data carries props, attributes, classes, styles and listeners.
// Handle is the only mutable field: it points at the host-side element once
// the node has been created.
//
// # Construction
//
// Nodes are built with H:
//
//	n, err := vdom.H("a#home.nav", &vdom.Data{Attrs: map[string]string{"href": "/"}}, "hi")
//
// A lone string is text content. When both children and text are given the
// children win and the text is dropped.
//
// # Diffing
//
// Diff compares two trees and returns an ordered slice of Op values. Keyed
// children are reconciled with a four-pointer walk so reorders become Moves
// instead of Create/Remove pairs. Handles of matched nodes are carried from
// the old tree to the new one.
package vdom
