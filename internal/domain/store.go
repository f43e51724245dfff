package domain

import "context"

// LogStore owns the authoritative log. Every mutation is a full
// read-modify-write cycle that is durable before the call returns.
type LogStore interface {
	Load(ctx context.Context) (Log, error)
	Append(ctx context.Context, entry Entry) (Log, error)
	DeleteByTimestamp(ctx context.Context, timestamp int64) (Log, int, error)
	Clear(ctx context.Context) (Log, error)
}

// Hub delivers frames to connected channels.
type Hub interface {
	Broadcast(msg Message)
	Send(connID string, msg Message)
}
