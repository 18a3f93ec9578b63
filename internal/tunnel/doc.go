// Package tunnel implements the full-duplex byte relay that backs an
// established CONNECT tunnel.
//
// Features:
//   - Two independent relay loops, one per direction, each copying in 16 KiB chunks
//   - Half-close of each destination exactly when its source reaches end-of-stream
//   - Exact per-direction byte accounting reported as Stats
//   - Failure isolation: the first I/O error aborts the tunnel and unblocks the peer loop
//
// Usage:
//  1. Wrap the client and destination connections in Endpoints
//  2. Construct a Tunnel with New
//  3. Call Start once; it blocks until both directions finish
package tunnel
