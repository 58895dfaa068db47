// Package vtest provides test doubles for bridge hosts.
//
// Host records every command it receives and can be told to fail, panic or
// hold remove completions:
//
//	host := vtest.NewHost().
//	    WithElement("banner", "div").
//	    FailOn(bridge.OpUpdate, "elem_1")
//
//	// ... drive a session against host ...
//
//	vtest.ExpectCommands(t, host, "create:elem_1", "insert:elem_1")
package vtest
