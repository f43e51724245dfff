// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (entry.go, event.go, errors.go, store.go)
// with shared types and cross-cutting interfaces. No I/O - just contracts and value types.
// Prevents circular imports by keeping interfaces on the consumer side.
package domain
