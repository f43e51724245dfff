// Package app implements the session coordinator.
//
// Service sits between the websocket transport and the log store: it hands
// each new connection the full log, applies submit / clear / delete requests
// to the store, and broadcasts the outcome to every connection. One mutex
// covers each join and each mutation together with its broadcast, so every
// connection sees its history followed by exactly the changes applied after it.
package app
