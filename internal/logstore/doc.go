// Package logstore owns the authoritative entry log. Every operation is a full
// read-modify-write cycle over one JSON document held by a pluggable Backend,
// serialized by a process-wide mutex so concurrent mutations never interleave.
package logstore
