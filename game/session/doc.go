// Package session provides the viewer registry for the box broadcast server.
//
// The session package implements:
//   - Thread-safe tracking of connected viewers
//   - Process-unique, strictly increasing viewer ids
//   - Snapshot iteration for broadcast fan-out
//
// Core Types:
//
// Registry maps a transport Handle to the Session it belongs to. A Handle is
// opaque to the registry beyond being comparable and able to Send bytes.
//
// Session Identifiers:
//
// Ids start at 1 and increase by one on every Register call. They are never
// recycled, so a viewer that reconnects receives a new id.
//
// Usage:
//
//	registry := session.NewRegistry()
//
//	id, err := registry.Register(conn)
//	if err != nil {
//		return err
//	}
//
//	registry.ForEach(func(h session.Handle, id int) {
//		if err := h.Send(payload); err != nil {
//			logger.Warn("send failed", "user", id, "err", err)
//		}
//	})
//
//	registry.Unregister(conn)
//
// Concurrency:
//
// All methods are safe for concurrent use. ForEach works on a snapshot taken
// under a read lock, so a slow or failing Send never blocks registration and
// removing a handle mid-iteration does not skip any other handle.
package session
