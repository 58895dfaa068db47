// Package errors provides coded, structured errors for vbridge.
//
// Every failure the bridge can surface has a registered code that maps to a
// category, a short message and a longer explanation:
//   - construction: malformed VNode arguments (B1xx)
//   - contract: misuse of element proxies or sessions (B2xx)
//   - bridge: host command failures and ordering violations (B3xx)
//   - config: configuration loading and validation (B4xx)
//   - script: sandboxed script failures (B5xx)
//   - protocol: remote frame encoding/decoding (B6xx)
//
// Errors compare by code, so a registered error works as an errors.Is target
// regardless of the detail attached to a particular instance:
//
//	err := errors.New("B201").WithDetail("element elem_1 was removed")
//	stderrors.Is(err, session.ErrDisposed) // true
//
// # Usage
//
//	err := errors.New("B301").
//	    WithDetail("host rejected update for key \"a\"").
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR B301: Bridge command failed
//	//
//	//   host rejected update for key "a"
package errors
