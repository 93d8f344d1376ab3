// Package hub implements the broadcast registry using the actor pattern.
//
// A single goroutine owns the connection set and processes subscribe/unsubscribe/publish
// commands from a channel (no mutexes). Each connection gets a buffered writer goroutine so
// one slow or dead observer can never stall delivery to the others; full buffers and failed
// writes evict the offending connection on the next publish.
package hub
