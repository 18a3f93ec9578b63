// Package server implements the TLS-terminating CONNECT gateway.
//
// Features:
//   - Accepts TCP connections and runs one Session per connection in its own goroutine
//   - Terminates TLS with a shared, read-only server identity
//   - Reads one request per connection and only tunnels CONNECT
//   - Resolves the target, checks it against the destination policy, then dials it
//   - Hands both established streams to a tunnel.Tunnel for the byte relay
//   - Reports how every connection ended as exactly one Outcome
//   - Tracks active sessions for graceful shutdown
//
// Usage:
//  1. Build a Server with New
//  2. Call Serve with a listener (or ListenAndServe with an address)
//  3. Call Shutdown to close every active session and wait for them
//
// Sessions have no idle or read timeouts: a silent peer keeps its session
// open until the peer goes away or the server shuts down.
package server
