// SPDX-License-Identifier: MPL-2.0

// Package bridge carries engine commands and events between modkit and a
// front end over a local WebSocket.
//
// Every binary frame holds one CBOR-encoded Envelope using the core
// deterministic encoding. The envelope names its protocol version, and both
// the HTTP handshake (the Modkit-Protocol header) and every decoded frame
// are checked against ProtocolVersion so that a mismatched peer is refused
// rather than misread. Connections must present the server's bearer token.
package bridge
