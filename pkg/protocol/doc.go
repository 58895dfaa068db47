// Package protocol implements the binary wire format between a session and a
// remote renderer.
//
// # Wire Format
//
// Every message is one frame with a 5-byte header:
//
//	┌─────────────┬───────────────────────────────┐
//	│ Frame Type  │ Payload Length                │
//	│ (1 byte)    │ (4 bytes, big-endian)         │
//	└─────────────┴───────────────────────────────┘
//
// # Frame Types
//
//   - FrameHello (0x00): renderer → session, protocol version and name
//   - FrameCommand (0x01): session → renderer, one bridge command
//   - FrameQuery (0x02): session → renderer, look up an element by id
//     (a found element is addressed as "#" + id by later commands)
//   - FrameQueryResult (0x03): renderer → session, answer to a query
//   - FrameEvent (0x04): renderer → session, a user event on a key
//   - FrameTitle (0x05): session → renderer, document title
//   - FrameError (0x06): either direction
//
// # Encoding
//
//   - Varint: counts and sequence numbers (protobuf-style)
//   - Length-prefixed: strings and byte arrays
//   - JSON: free-form values (command props, event detail)
//
// Decoding failures are reported as B601 errors.
package protocol
