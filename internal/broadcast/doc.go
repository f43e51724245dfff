// Package broadcast implements the websocket connection hub using the actor
// pattern.
//
// A single goroutine owns the connection map and processes commands from a
// FIFO channel, so frames reach every connection in the order they were
// submitted. Each connection has its own writer goroutine with a bounded
// queue; a connection whose queue is full is disconnected rather than
// allowed to stall everyone else.
package broadcast
